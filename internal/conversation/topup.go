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

// confirmTopUp резервирует уникальную сумму и карту сбора средств,
// затем переводит заявку в PENDING_PAYMENT и показывает платежную
// инструкцию
func (e *Engine) confirmTopUp(ctx context.Context, sess *session.Session) {
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

	activeCard, err := e.cards.GetActiveCard(ctx)
	if err != nil {
		if errors.Is(err, postgres.ErrNoActiveCard) {
			e.logger.Error("no active collection card configured")
			e.prompt(sess, "Прием платежей временно недоступен. Свяжитесь с администратором.", navButtons())
			return
		}
		e.logger.Error("failed to get collection card", zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	unique, err := e.uniqueTopUpAmount(ctx, req.Amount)
	if err != nil {
		e.logger.Error("failed to pick unique amount", zap.Int64("request_id", req.ID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	if err := e.requests.SetUniqueAmount(ctx, req.ID, unique, activeCard.ID); err != nil {
		e.logger.Error("failed to set unique amount", zap.Int64("request_id", req.ID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	if err := e.requests.UpdateRequestStatus(ctx, req.ID, domain.RequestStatusPending, domain.RequestStatusPendingPayment); err != nil {
		e.logger.Error("failed to move request to payment", zap.Int64("request_id", req.ID), zap.Error(err))
		e.invalidCommand(sess)
		return
	}

	e.advance(ctx, sess, StepPaymentInstruction)
}

// uniqueTopUpAmount возвращает сумму с случайным смещением, которой нет
// среди ожидающих оплаты заявок. При коллизии смещение разыгрывается
// повторно один раз.
func (e *Engine) uniqueTopUpAmount(ctx context.Context, amount float64) (float64, error) {
	pending, err := e.requests.GetRequestsByStatus(ctx, domain.RequestStatusPendingPayment)
	if err != nil {
		return 0, err
	}

	taken := make(map[float64]bool, len(pending))
	for _, r := range pending {
		taken[r.UniqueAmount] = true
	}

	unique := e.settlement.UniqueAmount(amount)
	if taken[unique] {
		unique = e.settlement.UniqueAmount(amount)
	}
	return unique, nil
}

// enterPaymentInstruction показывает реквизиты и точную сумму перевода
func (e *Engine) enterPaymentInstruction(ctx context.Context, sess *session.Session) {
	req, err := e.openRequest(ctx, sess, domain.RequestStatusPendingPayment)
	if err != nil {
		e.logger.Error("failed to locate payment request", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		e.toMainMenu(ctx, sess)
		return
	}

	activeCard, err := e.cards.GetActiveCard(ctx)
	if err != nil {
		e.logger.Error("failed to get collection card", zap.Error(err))
		e.prompt(sess, "Прием платежей временно недоступен. Свяжитесь с администратором.", navButtons())
		return
	}

	e.prompt(sess,
		fmt.Sprintf("Переведите ровно %.0f UZS на карту %s (%s).\nСумма должна совпадать до последней цифры - по ней мы находим ваш перевод.\nПосле оплаты нажмите «Я оплатил».",
			req.UniqueAmount, activeCard.Number, activeCard.Owner),
		append([]Button{{Label: "Я оплатил", Data: cbPaid}}, navButtons()...))
}

// confirmPayment ищет входящий перевод на точную уникальную сумму.
// Перевод не найден - заявка остается в PENDING_PAYMENT, пользователь
// может повторить проверку позже.
func (e *Engine) confirmPayment(ctx context.Context, sess *session.Session) {
	if sess.Step != StepPaymentInstruction {
		e.invalidCommand(sess)
		return
	}

	req, err := e.openRequest(ctx, sess, domain.RequestStatusPendingPayment)
	if err != nil {
		if errors.Is(err, postgres.ErrRequestNotFound) {
			e.invalidCommand(sess)
			return
		}
		e.logger.Error("failed to locate payment request", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	activeCard, err := e.cards.GetActiveCard(ctx)
	if err != nil {
		e.logger.Error("failed to get collection card", zap.Error(err))
		e.prompt(sess, "Не удалось проверить оплату. Попробуйте позже.", e.paymentButtons())
		return
	}

	transfer, err := e.issuer.FindIncomingTransfer(ctx, activeCard.Number, req.UniqueAmount)
	if err != nil {
		e.logger.Warn("transfer lookup failed", zap.Int64("request_id", req.ID), zap.Error(err))
		e.prompt(sess, "Не удалось проверить оплату. Попробуйте позже.", e.paymentButtons())
		return
	}
	if transfer == nil {
		e.prompt(sess,
			fmt.Sprintf("Перевод на %.0f UZS пока не найден. Подождите пару минут и нажмите «Я оплатил» снова.", req.UniqueAmount),
			e.paymentButtons())
		return
	}

	e.settleConfirmedTopUp(ctx, sess, req, transfer)
}

// settleConfirmedTopUp применяет расчеты и выполняет депозит на платформе
func (e *Engine) settleConfirmedTopUp(ctx context.Context, sess *session.Session, req *domain.Request, transfer *domain.Transfer) {
	err := e.settlement.SettleTopUp(ctx, req, domain.RequestStatusPendingPayment)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyDecided) {
			e.invalidCommand(sess)
			return
		}
		e.logger.Error("failed to settle top-up", zap.Int64("request_id", req.ID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", e.paymentButtons())
		return
	}

	// Идентификатор сопоставленного перевода - свидетельство оплаты
	// для ручной сверки; его потеря расчеты не откатывает
	if transfer.ID != "" {
		if err := e.requests.SetPartnerResult(ctx, req.ID, &transfer.ID, nil, nil); err != nil {
			e.logger.Error("failed to record matched transfer", zap.Int64("request_id", req.ID), zap.Error(err))
		}
	}

	platform, err := e.platforms.GetPlatformByName(ctx, req.Platform)
	if err != nil {
		e.failSettledTopUp(ctx, sess, req, err)
		return
	}

	if err := e.gateway.Deposit(ctx, platform, req.PlatformUserID, req.Amount, req.CardNumber); err != nil {
		e.failSettledTopUp(ctx, sess, req, err)
		return
	}

	e.logger.Info("top-up completed",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Float64("amount", req.Amount),
	)

	e.notifyKeep(sess,
		fmt.Sprintf("Счет %s пополнен на %.0f UZS. Начислено билетов: %d.",
			req.PlatformUserID, req.Amount, money.Tickets(req.Amount)))
	e.toMainMenu(ctx, sess)
}

// failSettledTopUp переводит уже одобренную заявку в FAILED: деньги
// пользователя получены, депозит на платформе не прошел - разбирается
// администратор вручную
func (e *Engine) failSettledTopUp(ctx context.Context, sess *session.Session, req *domain.Request, cause error) {
	e.logger.Error("deposit failed after settlement, manual reconciliation required",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.Error(cause),
	)

	if err := e.requests.UpdateRequestStatus(ctx, req.ID, domain.RequestStatusApproved, domain.RequestStatusFailed); err != nil {
		e.logger.Error("failed to mark request as failed", zap.Int64("request_id", req.ID), zap.Error(err))
	}

	e.notifyKeep(sess, "Оплата получена, но пополнение не прошло. Свяжитесь с администратором.")
	e.toMainMenu(ctx, sess)
}

func (e *Engine) paymentButtons() []Button {
	return append([]Button{{Label: "Я оплатил", Data: cbPaid}}, navButtons()...)
}

// notifyKeep отправляет сообщение, которое не будет удалено при смене
// состояния
func (e *Engine) notifyKeep(sess *session.Session, text string) {
	if _, err := e.messenger.Send(sess.ChatID, text, nil); err != nil {
		e.logger.Warn("failed to send message", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
	}
}
