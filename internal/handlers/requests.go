package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/service"
	"go.uber.org/zap"
)

// Decider принимает решение администратора по заявке
type Decider interface {
	Decide(ctx context.Context, requestID int64, approve bool) error
}

// RequestsHandler обслуживает журнал заявок панели администратора
type RequestsHandler struct {
	requests domain.RequestRepository
	decider  Decider
	logger   *zap.Logger
}

// NewRequestsHandler создает новый RequestsHandler
func NewRequestsHandler(requests domain.RequestRepository, decider Decider, logger *zap.Logger) *RequestsHandler {
	return &RequestsHandler{
		requests: requests,
		decider:  decider,
		logger:   logger,
	}
}

// List возвращает заявки; ?status= фильтрует, по умолчанию PENDING_ADMIN
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.RequestStatusPendingAdmin
	}

	requests, err := h.requests.GetRequestsByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list requests", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(requests); err != nil {
		h.logger.Error("failed to encode requests response", zap.Error(err))
	}
}

// Approve одобряет заявку
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject отклоняет заявку
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

// Cancel снимает зависшую неоплаченную заявку на пополнение:
// PENDING_PAYMENT -> CANCELED. Для заявок на рассмотрении есть Reject.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err = h.requests.UpdateRequestStatus(r.Context(), id,
		domain.RequestStatusPendingPayment, domain.RequestStatusCanceled)
	if err != nil {
		if errors.Is(err, postgres.ErrWrongStatus) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to cancel request", zap.Int64("request_id", id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adminID, _ := GetAdminID(r.Context())
	h.logger.Info("request canceled",
		zap.Int64("request_id", id),
		zap.Int64("admin_id", adminID),
	)

	w.WriteHeader(http.StatusOK)
}

func (h *RequestsHandler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err = h.decider.Decide(r.Context(), id, approve)
	if err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrAlreadyDecided) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to decide request",
			zap.Int64("request_id", id),
			zap.Bool("approve", approve),
			zap.Error(err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adminID, _ := GetAdminID(r.Context())
	h.logger.Info("request decided",
		zap.Int64("request_id", id),
		zap.Int64("admin_id", adminID),
		zap.Bool("approve", approve),
	)

	w.WriteHeader(http.StatusOK)
}
