package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/utils/jwt"
	"github.com/uzpay/cashdesk-bot/internal/utils/password"
	"go.uber.org/zap"
)

// AuthHandler аутентифицирует администраторов панели.
// Регистрации нет: администраторы заводятся напрямую в базе.
type AuthHandler struct {
	admins     domain.AdminRepository
	hasher     *password.BCryptHasher
	jwtManager *jwt.Manager
	logger     *zap.Logger
}

// NewAuthHandler создает новый AuthHandler
func NewAuthHandler(admins domain.AdminRepository, hasher *password.BCryptHasher, jwtManager *jwt.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		admins:     admins,
		hasher:     hasher,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

type authRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.Login == "" || req.Password == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	admin, err := h.admins.GetAdminByLogin(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, postgres.ErrAdminNotFound) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error("failed to get admin", zap.Error(err), zap.String("login", req.Login))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.hasher.Check(admin.PasswordHash, req.Password); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := h.jwtManager.Generate(admin.ID)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err), zap.String("login", req.Login))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}
