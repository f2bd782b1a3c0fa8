package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"go.uber.org/zap"
)

// ReferenceHandler обслуживает справочники: платформы и карты сбора средств
type ReferenceHandler struct {
	platforms domain.PlatformRepository
	cards     domain.CardRepository
	logger    *zap.Logger
}

// NewReferenceHandler создает новый ReferenceHandler
func NewReferenceHandler(platforms domain.PlatformRepository, cards domain.CardRepository, logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		platforms: platforms,
		cards:     cards,
		logger:    logger,
	}
}

// ListPlatforms возвращает активные платформы
func (h *ReferenceHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := h.platforms.GetActivePlatforms(r.Context())
	if err != nil {
		h.logger.Error("failed to list platforms", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(platforms); err != nil {
		h.logger.Error("failed to encode platforms response", zap.Error(err))
	}
}

type createPlatformRequest struct {
	Name        string          `json:"name"`
	Currency    domain.Currency `json:"currency"`
	APIKey      string          `json:"api_key"`
	CashierPass string          `json:"cashier_pass"`
	CashdeskID  string          `json:"cashdesk_id"`
	BaseURL     string          `json:"base_url"`
	MinTickets  int64           `json:"min_tickets"`
	MaxTickets  int64           `json:"max_tickets"`
}

// CreatePlatform регистрирует новую платформу
func (h *ReferenceHandler) CreatePlatform(w http.ResponseWriter, r *http.Request) {
	var req createPlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.APIKey == "" || req.CashierPass == "" || req.CashdeskID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	platform := &domain.Platform{
		Name:        req.Name,
		Currency:    req.Currency,
		APIKey:      req.APIKey,
		CashierPass: req.CashierPass,
		CashdeskID:  req.CashdeskID,
		BaseURL:     req.BaseURL,
		MinTickets:  req.MinTickets,
		MaxTickets:  req.MaxTickets,
		Active:      true,
	}

	created, err := h.platforms.CreatePlatform(r.Context(), platform)
	if err != nil {
		if errors.Is(err, postgres.ErrPlatformExists) {
			http.Error(w, "Conflict", http.StatusConflict)
			return
		}
		h.logger.Error("failed to create platform", zap.String("platform", req.Name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		h.logger.Error("failed to encode platform response", zap.Error(err))
	}
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetPlatformActive включает или выключает платформу
func (h *ReferenceHandler) SetPlatformActive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := h.platforms.SetPlatformActive(r.Context(), name, req.Active); err != nil {
		if errors.Is(err, postgres.ErrPlatformNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update platform", zap.String("platform", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListCards возвращает карты сбора средств
func (h *ReferenceHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.GetCards(r.Context())
	if err != nil {
		h.logger.Error("failed to list cards", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cards); err != nil {
		h.logger.Error("failed to encode cards response", zap.Error(err))
	}
}

type createCardRequest struct {
	Number string `json:"number"`
	Owner  string `json:"owner"`
}

// CreateCard добавляет карту сбора средств
func (h *ReferenceHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.Number == "" || req.Owner == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	card, err := h.cards.CreateCard(r.Context(), req.Number, req.Owner)
	if err != nil {
		h.logger.Error("failed to create card", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(card); err != nil {
		h.logger.Error("failed to encode card response", zap.Error(err))
	}
}

// SetCardActive делает карту активной: именно на нее пользователи
// переводят деньги при пополнении
func (h *ReferenceHandler) SetCardActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := h.cards.SetCardActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, postgres.ErrCardNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update card", zap.Int64("card_id", id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
