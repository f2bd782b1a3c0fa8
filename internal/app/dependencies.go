package app

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uzpay/cashdesk-bot/internal/config"
	"github.com/uzpay/cashdesk-bot/internal/conversation"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/gateway"
	"github.com/uzpay/cashdesk-bot/internal/handlers"
	"github.com/uzpay/cashdesk-bot/internal/rates"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/service"
	"github.com/uzpay/cashdesk-bot/internal/session"
	"github.com/uzpay/cashdesk-bot/internal/telegram"
	"github.com/uzpay/cashdesk-bot/internal/utils/jwt"
	"github.com/uzpay/cashdesk-bot/internal/utils/password"
	"github.com/uzpay/cashdesk-bot/internal/worker"
	"go.uber.org/zap"
)

const gatewayTimeout = 10 * time.Second

// repositories содержит все репозитории приложения
type repositories struct {
	request  domain.RequestRepository
	balance  domain.BalanceRepository
	platform domain.PlatformRepository
	card     domain.CardRepository
	admin    domain.AdminRepository
}

// handlerSet содержит все хендлеры приложения
type handlerSet struct {
	auth      *handlers.AuthHandler
	requests  *handlers.RequestsHandler
	balances  *handlers.BalancesHandler
	reference *handlers.ReferenceHandler
	health    *handlers.HealthHandler
}

// dependencies содержит все зависимости приложения
type dependencies struct {
	repos      *repositories
	handlers   *handlerSet
	jwtManager *jwt.Manager
	dispatcher *worker.Dispatcher
	bot        *telegram.Bot
}

// initDependencies создает все зависимости приложения
func initDependencies(cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) (*dependencies, error) {
	// Создание репозиториев
	repos := &repositories{
		request:  postgres.NewRequestRepository(dbPool),
		balance:  postgres.NewBalanceRepository(dbPool),
		platform: postgres.NewPlatformRepository(dbPool),
		card:     postgres.NewCardRepository(dbPool),
		admin:    postgres.NewAdminRepository(dbPool),
	}

	// Создание утилит
	passwordHasher := password.NewBCryptHasher(password.DefaultCost)
	jwtManager := jwt.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL)

	// Внешние шлюзы: кассы партнеров, эмитент карт, курс валют
	cashdesk := gateway.NewCashdeskClient(gatewayTimeout)
	oson := gateway.NewOsonClient(cfg.OsonBaseURL, cfg.OsonPhone, cfg.OsonPassword, gatewayTimeout, logger)
	rateSource := rates.NewCBUSource(cfg.RatesURL, cfg.RatesTTL, logger)

	// Движок расчетов и диспетчер обновлений
	sessions := session.NewStore()
	settlement := service.NewSettlementEngine(repos.request, repos.balance, rateSource, logger)
	dispatcher := worker.NewDispatcher(cfg.DispatchLanes, cfg.DispatchQueueSize, logger)

	// Бот и движок разговора ссылаются друг на друга: бот доставляет
	// сообщения движка, движок обрабатывает обновления бота
	bot, err := telegram.New(cfg.BotToken, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	engine := conversation.NewEngine(
		sessions,
		repos.request,
		repos.balance,
		repos.platform,
		repos.card,
		cashdesk,
		oson,
		settlement,
		bot,
		logger,
	)
	bot.SetEngine(engine)

	// Координатор решений администратора уведомляет пользователя через бота
	approval := service.NewApprovalCoordinator(repos.request, settlement, cashdesk, repos.platform, bot, logger)

	// Создание handlers
	hdlrs := &handlerSet{
		auth:      handlers.NewAuthHandler(repos.admin, passwordHasher, jwtManager, logger),
		requests:  handlers.NewRequestsHandler(repos.request, approval, logger),
		balances:  handlers.NewBalancesHandler(repos.balance, settlement, logger),
		reference: handlers.NewReferenceHandler(repos.platform, repos.card, logger),
		health:    handlers.NewHealthHandler(dbPool, logger),
	}

	return &dependencies{
		repos:      repos,
		handlers:   hdlrs,
		jwtManager: jwtManager,
		dispatcher: dispatcher,
		bot:        bot,
	}, nil
}
