package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/service"
	"github.com/uzpay/cashdesk-bot/internal/session"
	"github.com/uzpay/cashdesk-bot/internal/utils/money"
	"go.uber.org/zap"
)

// promptTicketCount просит число билетов в границах платформы и
// показывает доступный бонусный баланс
func (e *Engine) promptTicketCount(ctx context.Context, sess *session.Session) {
	platform, err := e.platforms.GetPlatformByName(ctx, sess.Platform)
	if err != nil {
		e.logger.Error("failed to get platform", zap.String("platform", sess.Platform), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	balance, err := e.balances.GetBalance(ctx, sess.ChatID)
	if err != nil {
		e.logger.Error("failed to get balance", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	e.prompt(sess,
		fmt.Sprintf("Ваш бонусный баланс: %.2f UZS.\nОдин билет - %d UZS. Введите число билетов (от %d до %d):",
			balance.Amount, int64(money.TicketPrice), platform.MinTickets, platform.MaxTickets),
		navButtons())
}

// inputTicketCount валидирует число билетов по границам платформы
func (e *Engine) inputTicketCount(ctx context.Context, sess *session.Session, count int64) {
	platform, err := e.platforms.GetPlatformByName(ctx, sess.Platform)
	if err != nil {
		e.logger.Error("failed to get platform", zap.String("platform", sess.Platform), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	if count < platform.MinTickets || count > platform.MaxTickets {
		e.prompt(sess,
			fmt.Sprintf("Число билетов должно быть от %d до %d. Введите снова:",
				platform.MinTickets, platform.MaxTickets),
			navButtons())
		return
	}

	sess.Amount = count
	e.advance(ctx, sess, StepConfirmation)
}

// confirmBonus оплачивает пополнение из бонусного баланса и выполняет
// депозит на платформе. Списание и переход в BONUS_APPROVED атомарны по
// статусу заявки.
func (e *Engine) confirmBonus(ctx context.Context, sess *session.Session) {
	req, err := e.openRequest(ctx, sess, domain.RequestStatusPending)
	if err != nil {
		if errors.Is(err, postgres.ErrRequestNotFound) {
			e.invalidCommand(sess)
			return
		}
		e.logger.Error("failed to locate pending request", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	err = e.settlement.SettleBonus(ctx, req, domain.RequestStatusPending)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientFunds):
			e.prompt(sess,
				fmt.Sprintf("Недостаточно бонусных средств для пополнения на %.0f UZS.", req.Amount),
				navButtons())
		case errors.Is(err, service.ErrAlreadyDecided):
			e.invalidCommand(sess)
		default:
			e.logger.Error("failed to settle bonus top-up", zap.Int64("request_id", req.ID), zap.Error(err))
			e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		}
		return
	}

	platform, err := e.platforms.GetPlatformByName(ctx, req.Platform)
	if err != nil {
		e.failBonusDeposit(ctx, sess, req, err)
		return
	}

	if err := e.gateway.Deposit(ctx, platform, req.PlatformUserID, req.Amount, ""); err != nil {
		e.failBonusDeposit(ctx, sess, req, err)
		return
	}

	e.logger.Info("bonus top-up completed",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Float64("amount", req.Amount),
	)

	e.notifyKeep(sess,
		fmt.Sprintf("Счет %s пополнен на %.0f UZS из бонусного баланса.", req.PlatformUserID, req.Amount))
	e.toMainMenu(ctx, sess)
}

// failBonusDeposit сообщает о непрошедшем депозите. Бонусный баланс уже
// списан, заявка в BONUS_APPROVED - расхождение устраняет администратор
// вручную.
func (e *Engine) failBonusDeposit(ctx context.Context, sess *session.Session, req *domain.Request, cause error) {
	e.logger.Error("bonus deposit failed after balance spend, manual reconciliation required",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Float64("amount", req.Amount),
		zap.Error(cause),
	)

	e.notifyKeep(sess, "Бонусное пополнение не прошло. Свяжитесь с администратором.")
	e.toMainMenu(ctx, sess)
}
