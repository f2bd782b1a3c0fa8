package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/service"
	"go.uber.org/zap"
)

// TicketPlayer списывает билеты за участие в розыгрыше
type TicketPlayer interface {
	PlayTickets(ctx context.Context, chatID, tickets int64) error
}

// BalancesHandler обслуживает балансы пользователей в панели администратора
type BalancesHandler struct {
	balances domain.BalanceRepository
	lottery  TicketPlayer
	logger   *zap.Logger
}

// NewBalancesHandler создает новый BalancesHandler
func NewBalancesHandler(balances domain.BalanceRepository, lottery TicketPlayer, logger *zap.Logger) *BalancesHandler {
	return &BalancesHandler{
		balances: balances,
		lottery:  lottery,
		logger:   logger,
	}
}

// Get возвращает баланс пользователя по chat id
func (h *BalancesHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	balance, err := h.balances.GetBalance(r.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to get balance", zap.Int64("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(balance); err != nil {
		h.logger.Error("failed to encode balance response", zap.Error(err))
	}
}

type adjustRequest struct {
	Tickets int64   `json:"tickets"`
	Amount  float64 `json:"amount"`
}

// Adjust вручную начисляет билеты или бонусные средства.
// Корректировка только в плюс: списания идут через обычные операции.
func (h *BalancesHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.Tickets < 0 || req.Amount < 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.Tickets > 0 {
		if err := h.balances.CreditTickets(ctx, chatID, req.Tickets); err != nil {
			h.logger.Error("failed to credit tickets", zap.Int64("chat_id", chatID), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	if req.Amount > 0 {
		if err := h.balances.CreditAmount(ctx, chatID, req.Amount); err != nil {
			h.logger.Error("failed to credit amount", zap.Int64("chat_id", chatID), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	adminID, _ := GetAdminID(ctx)
	h.logger.Info("balance adjusted",
		zap.Int64("chat_id", chatID),
		zap.Int64("admin_id", adminID),
		zap.Int64("tickets", req.Tickets),
		zap.Float64("amount", req.Amount),
	)

	w.WriteHeader(http.StatusOK)
}

type playRequest struct {
	Tickets int64 `json:"tickets"`
}

// Play списывает билеты участника при проведении розыгрыша
func (h *BalancesHandler) Play(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err = h.lottery.PlayTickets(r.Context(), chatID, req.Tickets)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if errors.Is(err, service.ErrInsufficientTickets) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to play tickets", zap.Int64("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adminID, _ := GetAdminID(r.Context())
	h.logger.Info("lottery tickets played",
		zap.Int64("chat_id", chatID),
		zap.Int64("admin_id", adminID),
		zap.Int64("tickets", req.Tickets),
	)

	w.WriteHeader(http.StatusOK)
}
