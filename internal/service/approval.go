package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"go.uber.org/zap"
)

// Notifier доставляет пользователю сообщение о судьбе его заявки
type Notifier interface {
	Notify(chatID int64, text string) error
}

// ApprovalCoordinator проводит заявку через одноразовое решение
// администратора. Проверка и смена статуса атомарны: из двух
// одновременных решений по одной заявке выигрывает ровно одно,
// второе получает ErrAlreadyDecided и не применяет расчеты повторно.
type ApprovalCoordinator struct {
	requests   domain.RequestRepository
	settlement *SettlementEngine
	gateway    domain.PlatformGateway
	platforms  domain.PlatformRepository
	notifier   Notifier
	logger     *zap.Logger
}

// NewApprovalCoordinator создает новый ApprovalCoordinator
func NewApprovalCoordinator(
	requests domain.RequestRepository,
	settlement *SettlementEngine,
	gateway domain.PlatformGateway,
	platforms domain.PlatformRepository,
	notifier Notifier,
	logger *zap.Logger,
) *ApprovalCoordinator {
	return &ApprovalCoordinator{
		requests:   requests,
		settlement: settlement,
		gateway:    gateway,
		platforms:  platforms,
		notifier:   notifier,
		logger:     logger,
	}
}

// Decide применяет решение администратора по заявке
func (c *ApprovalCoordinator) Decide(ctx context.Context, requestID int64, approve bool) error {
	req, err := c.requests.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, postgres.ErrRequestNotFound) || errors.Is(err, domain.ErrRequestNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("approval: failed to get request %d: %w", requestID, err)
	}

	if !approve {
		return c.reject(ctx, req)
	}

	switch req.Type {
	case domain.RequestTypeWithdrawal:
		return c.approveWithdrawal(ctx, req)
	case domain.RequestTypeTopUp:
		return c.approveTopUp(ctx, req)
	default:
		return fmt.Errorf("approval: unknown request type %q", req.Type)
	}
}

// reject отклоняет заявку без расчетов
func (c *ApprovalCoordinator) reject(ctx context.Context, req *domain.Request) error {
	err := c.requests.UpdateRequestStatus(ctx, req.ID, domain.RequestStatusPendingAdmin, domain.RequestStatusCanceled)
	if err != nil {
		if errors.Is(err, postgres.ErrWrongStatus) || errors.Is(err, domain.ErrWrongStatus) {
			return ErrAlreadyDecided
		}
		if errors.Is(err, postgres.ErrRequestNotFound) || errors.Is(err, domain.ErrRequestNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("approval: failed to reject request %d: %w", req.ID, err)
	}

	c.logger.Info("request rejected",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
	)

	c.notify(req.ChatID, "Ваша заявка отклонена администратором.")
	return nil
}

// approveWithdrawal одобряет вывод: атомарный переход статуса, затем
// выплата через партнерский шлюз. Сбой шлюза после одобрения переводит
// заявку в FAILED и отдается администраторам на ручную сверку - деньги
// могли частично уйти, слепой повтор недопустим.
func (c *ApprovalCoordinator) approveWithdrawal(ctx context.Context, req *domain.Request) error {
	if err := c.settlement.ApproveWithdrawal(ctx, req); err != nil {
		return err
	}

	platform, err := c.platforms.GetPlatformByName(ctx, req.Platform)
	if err != nil {
		c.fail(ctx, req, fmt.Errorf("approval: failed to get platform %q: %w", req.Platform, err))
		return nil
	}

	gross, err := c.gateway.Payout(ctx, platform, req.PlatformUserID, req.Code)
	if err != nil {
		c.fail(ctx, req, fmt.Errorf("approval: payout failed for request %d: %w", req.ID, err))
		return nil
	}

	net, err := c.settlement.NetPayout(ctx, req.Currency, gross)
	if err != nil {
		// Выплата прошла, не смогли только посчитать нетто для
		// уведомления: заявка остается APPROVED
		c.logger.Error("failed to compute net payout",
			zap.Int64("request_id", req.ID),
			zap.Float64("gross", gross),
			zap.Error(err),
		)
		c.notify(req.ChatID, "Ваша заявка на вывод одобрена.")
		return nil
	}

	c.logger.Info("withdrawal approved",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Float64("gross", gross),
		zap.Float64("net", net),
	)

	c.notify(req.ChatID, fmt.Sprintf("Ваша заявка на вывод одобрена. К получению: %.2f UZS", net))
	return nil
}

// approveTopUp одобряет пополнение, требующее подтверждения админа:
// расчеты, затем депозит на платформе
func (c *ApprovalCoordinator) approveTopUp(ctx context.Context, req *domain.Request) error {
	if err := c.settlement.SettleTopUp(ctx, req, domain.RequestStatusPendingAdmin); err != nil {
		return err
	}

	platform, err := c.platforms.GetPlatformByName(ctx, req.Platform)
	if err != nil {
		c.fail(ctx, req, fmt.Errorf("approval: failed to get platform %q: %w", req.Platform, err))
		return nil
	}

	if err := c.gateway.Deposit(ctx, platform, req.PlatformUserID, req.Amount, req.CardNumber); err != nil {
		c.fail(ctx, req, fmt.Errorf("approval: deposit failed for request %d: %w", req.ID, err))
		return nil
	}

	c.logger.Info("top-up approved",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Float64("amount", req.Amount),
	)

	c.notify(req.ChatID, fmt.Sprintf("Счет пополнен на %.0f.", req.Amount))
	return nil
}

// fail переводит одобренную заявку в FAILED и пишет ошибку для
// операторов; автоматических повторов денежных вызовов нет
func (c *ApprovalCoordinator) fail(ctx context.Context, req *domain.Request, cause error) {
	c.logger.Error("request failed after approval, manual reconciliation required",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Error(cause),
	)

	if err := c.requests.UpdateRequestStatus(ctx, req.ID, domain.RequestStatusApproved, domain.RequestStatusFailed); err != nil {
		c.logger.Error("failed to mark request as failed",
			zap.Int64("request_id", req.ID),
			zap.Error(err),
		)
	}

	c.notify(req.ChatID, "Не удалось выполнить операцию. Свяжитесь с администратором.")
}

func (c *ApprovalCoordinator) notify(chatID int64, text string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(chatID, text); err != nil {
		c.logger.Warn("failed to notify user", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
