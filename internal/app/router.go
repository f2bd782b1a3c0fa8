package app

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uzpay/cashdesk-bot/internal/handlers"
	"github.com/uzpay/cashdesk-bot/internal/utils/jwt"
	"go.uber.org/zap"
)

// setupRouter создает и настраивает роутер
func setupRouter(deps *dependencies, jwtManager *jwt.Manager, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	setupMiddleware(r, logger)

	// Маршруты
	setupRoutes(r, deps, jwtManager)

	return r
}

// setupMiddleware настраивает middleware для роутера
func setupMiddleware(r *chi.Mux, logger *zap.Logger) {
	r.Use(handlers.RequestIDMiddleware())
	r.Use(handlers.LoggingMiddleware(logger))
	r.Use(handlers.RecoveryMiddleware(logger))
	r.Use(middleware.Compress(5))
}

// setupRoutes настраивает маршруты приложения
func setupRoutes(r *chi.Mux, deps *dependencies, jwtManager *jwt.Manager) {
	// Health check эндпоинты
	r.Get("/health", deps.handlers.health.Health)
	r.Get("/ready", deps.handlers.health.Ready)

	// Публичные эндпоинты
	r.Post("/api/admin/login", deps.handlers.auth.Login)

	// Защищенные эндпоинты
	r.Group(func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(jwtManager))
		r.Get("/api/admin/requests", deps.handlers.requests.List)
		r.Post("/api/admin/requests/{id}/approve", deps.handlers.requests.Approve)
		r.Post("/api/admin/requests/{id}/reject", deps.handlers.requests.Reject)
		r.Post("/api/admin/requests/{id}/cancel", deps.handlers.requests.Cancel)
		r.Get("/api/admin/balances/{chatID}", deps.handlers.balances.Get)
		r.Post("/api/admin/balances/{chatID}/adjust", deps.handlers.balances.Adjust)
		r.Post("/api/admin/balances/{chatID}/play", deps.handlers.balances.Play)
		r.Get("/api/admin/platforms", deps.handlers.reference.ListPlatforms)
		r.Post("/api/admin/platforms", deps.handlers.reference.CreatePlatform)
		r.Post("/api/admin/platforms/{name}/activate", deps.handlers.reference.SetPlatformActive)
		r.Get("/api/admin/cards", deps.handlers.reference.ListCards)
		r.Post("/api/admin/cards", deps.handlers.reference.CreateCard)
		r.Post("/api/admin/cards/{id}/activate", deps.handlers.reference.SetCardActive)
	})
}
