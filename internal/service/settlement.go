package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/utils/money"
	"go.uber.org/zap"
)

// SettlementEngine применяет финансовые последствия одобренной заявки
// ровно один раз. Идемпотентность обеспечивается атомарным переводом
// статуса самой заявки: кто проиграл гонку за переход, тот не применяет
// эффекты.
type SettlementEngine struct {
	requests domain.RequestRepository
	balances domain.BalanceRepository
	rates    domain.RateSource
	logger   *zap.Logger

	// offsetFn возвращает случайное смещение 0..99 для уникальной суммы;
	// подменяется в тестах
	offsetFn func() int
}

// NewSettlementEngine создает новый SettlementEngine
func NewSettlementEngine(
	requests domain.RequestRepository,
	balances domain.BalanceRepository,
	rates domain.RateSource,
	logger *zap.Logger,
) *SettlementEngine {
	return &SettlementEngine{
		requests: requests,
		balances: balances,
		rates:    rates,
		logger:   logger,
		offsetFn: func() int { return rand.Intn(100) },
	}
}

// UniqueAmount перешивает номинальную сумму случайным смещением 0..99,
// чтобы входящий банковский перевод можно было сопоставить ровно одной
// ожидающей заявке. Это защита от коллизий, не от злоумышленника.
func (e *SettlementEngine) UniqueAmount(amount float64) float64 {
	return amount + float64(e.offsetFn())
}

// SettleTopUp переводит заявку на пополнение из from в APPROVED и
// применяет побочные эффекты: билеты инициатору и комиссию рефереру.
// Повторный вызов вернет ErrAlreadyDecided и эффектов не применит.
func (e *SettlementEngine) SettleTopUp(ctx context.Context, req *domain.Request, from domain.RequestStatus) error {
	if err := e.transition(ctx, req.ID, from, domain.RequestStatusApproved); err != nil {
		return err
	}

	e.applySideEffects(ctx, req)
	return nil
}

// SettleBonus оплачивает пополнение из бонусного баланса пользователя
// и переводит заявку в BONUS_APPROVED. Сначала списание - его страхует
// проверка достаточности, затем переход статуса; проигравший гонку за
// переход получает списанное обратно.
func (e *SettlementEngine) SettleBonus(ctx context.Context, req *domain.Request, from domain.RequestStatus) error {
	err := e.balances.SpendAmount(ctx, req.ChatID, req.Amount)
	if err != nil {
		if errors.Is(err, postgres.ErrInsufficientFunds) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("settlement: failed to spend bonus balance for request %d: %w", req.ID, err)
	}

	if err := e.transition(ctx, req.ID, from, domain.RequestStatusBonusApproved); err != nil {
		if refundErr := e.balances.CreditAmount(ctx, req.ChatID, req.Amount); refundErr != nil {
			e.logger.Error("failed to refund bonus balance after lost transition",
				zap.Int64("request_id", req.ID),
				zap.Float64("amount", req.Amount),
				zap.Error(refundErr),
			)
		}
		return err
	}

	return nil
}

// ApproveWithdrawal переводит заявку на вывод из PENDING_ADMIN в
// APPROVED. Сам перевод средств выполняет координатор после этого
// вызова; повторное одобрение вернет ErrAlreadyDecided.
func (e *SettlementEngine) ApproveWithdrawal(ctx context.Context, req *domain.Request) error {
	if req.Type != domain.RequestTypeWithdrawal {
		return fmt.Errorf("settlement: request %d is not a withdrawal", req.ID)
	}
	return e.transition(ctx, req.ID, domain.RequestStatusPendingAdmin, domain.RequestStatusApproved)
}

// NetPayout вычисляет чистую сумму вывода в UZS по брутто-выплате
// партнера: для UZS - 98% с усечением, для RUB - конвертация по
// текущему курсу с усечением
func (e *SettlementEngine) NetPayout(ctx context.Context, currency domain.Currency, gross float64) (float64, error) {
	switch currency {
	case domain.CurrencyUZS:
		return money.NetPayoutUZS(gross), nil
	case domain.CurrencyRUB:
		rate, err := e.rates.RUBRate(ctx)
		if err != nil {
			return 0, fmt.Errorf("settlement: failed to get RUB rate: %w", err)
		}
		return money.ConvertRUB(gross, rate), nil
	default:
		return 0, fmt.Errorf("settlement: unknown currency %q", currency)
	}
}

// PlayTickets списывает билеты за участие в лотерее
func (e *SettlementEngine) PlayTickets(ctx context.Context, chatID, tickets int64) error {
	if tickets <= 0 {
		return ErrInvalidAmount
	}

	err := e.balances.SpendTickets(ctx, chatID, tickets)
	if err != nil {
		if errors.Is(err, postgres.ErrInsufficientTickets) || errors.Is(err, domain.ErrInsufficientTickets) {
			return ErrInsufficientTickets
		}
		return fmt.Errorf("settlement: failed to spend %d tickets for chat %d: %w", tickets, chatID, err)
	}

	return nil
}

// transition выполняет атомарный переход статуса и переводит ошибки
// хранилища в словарь сервиса
func (e *SettlementEngine) transition(ctx context.Context, id int64, from, to domain.RequestStatus) error {
	err := e.requests.UpdateRequestStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, postgres.ErrWrongStatus) || errors.Is(err, domain.ErrWrongStatus) {
			return ErrAlreadyDecided
		}
		if errors.Is(err, postgres.ErrRequestNotFound) || errors.Is(err, domain.ErrRequestNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("settlement: failed to transition request %d to %s: %w", id, to, err)
	}
	return nil
}

// applySideEffects начисляет билеты и реферальную комиссию.
// Ошибки начисления логируются, но не откатывают уже совершенный
// переход статуса: они устраняются ручной сверкой.
func (e *SettlementEngine) applySideEffects(ctx context.Context, req *domain.Request) {
	tickets := money.Tickets(req.Amount)
	if err := e.balances.CreditTickets(ctx, req.ChatID, tickets); err != nil {
		e.logger.Error("failed to credit tickets",
			zap.Int64("request_id", req.ID),
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("tickets", tickets),
			zap.Error(err),
		)
	}

	referrer, err := e.balances.GetReferrer(ctx, req.ChatID)
	if err != nil {
		if !errors.Is(err, postgres.ErrReferrerNotFound) {
			e.logger.Error("failed to get referrer",
				zap.Int64("chat_id", req.ChatID),
				zap.Error(err),
			)
		}
		return
	}

	commission := money.ReferralCommission(req.Amount)
	if err := e.balances.CreditAmount(ctx, referrer, commission); err != nil {
		e.logger.Error("failed to credit referral commission",
			zap.Int64("referrer_chat_id", referrer),
			zap.Float64("commission", commission),
			zap.Error(err),
		)
	}
}
