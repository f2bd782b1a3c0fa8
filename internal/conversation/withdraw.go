package conversation

import (
	"context"
	"errors"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/session"
	"go.uber.org/zap"
)

// confirmWithdraw передает заявку на вывод администратору. Дальше
// деньгами занимается координатор решений: выплата выполняется только
// после одобрения.
func (e *Engine) confirmWithdraw(ctx context.Context, sess *session.Session) {
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

	if err := e.requests.UpdateRequestStatus(ctx, req.ID, domain.RequestStatusPending, domain.RequestStatusPendingAdmin); err != nil {
		if errors.Is(err, postgres.ErrWrongStatus) {
			e.invalidCommand(sess)
			return
		}
		e.logger.Error("failed to escalate request", zap.Int64("request_id", req.ID), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	e.logger.Info("withdrawal escalated to admin",
		zap.Int64("request_id", req.ID),
		zap.Int64("chat_id", req.ChatID),
		zap.String("platform", req.Platform),
	)

	e.advance(ctx, sess, StepAdminGate)
}
