package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
)

// BalanceRepository реализует хранение балансов и реферальных связей
type BalanceRepository struct {
	db DBTX
}

// NewBalanceRepository создает новый BalanceRepository
func NewBalanceRepository(db DBTX) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetBalance получает баланс пользователя; отсутствие строки - нулевой баланс
func (r *BalanceRepository) GetBalance(ctx context.Context, chatID int64) (*domain.Balance, error) {
	balance := &domain.Balance{ChatID: chatID}

	err := r.db.QueryRow(ctx,
		`SELECT tickets, amount FROM balances WHERE chat_id = $1`,
		chatID,
	).Scan(&balance.Tickets, &balance.Amount)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return balance, nil
		}
		return nil, fmt.Errorf("repository: failed to get balance for chat %d: %w", chatID, err)
	}

	return balance, nil
}

// CreditTickets начисляет билеты пользователю
func (r *BalanceRepository) CreditTickets(ctx context.Context, chatID int64, tickets int64) error {
	if tickets <= 0 {
		return nil
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO balances (chat_id, tickets) VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO UPDATE SET tickets = balances.tickets + $2`,
		chatID, tickets)
	if err != nil {
		return fmt.Errorf("repository: failed to credit %d tickets to chat %d: %w", tickets, chatID, err)
	}

	return nil
}

// SpendTickets списывает билеты с блокировкой строки.
// Advisory lock по chat_id защищает от параллельных списаний.
func (r *BalanceRepository) SpendTickets(ctx context.Context, chatID int64, tickets int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction for chat %d: %w", chatID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chatID)
	if err != nil {
		return fmt.Errorf("repository: failed to acquire lock for chat %d: %w", chatID, err)
	}

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE((SELECT tickets FROM balances WHERE chat_id = $1), 0)`,
		chatID).Scan(&current)
	if err != nil {
		return fmt.Errorf("repository: failed to get tickets for chat %d: %w", chatID, err)
	}

	if current < tickets {
		return ErrInsufficientTickets
	}

	_, err = tx.Exec(ctx,
		`UPDATE balances SET tickets = tickets - $1 WHERE chat_id = $2`,
		tickets, chatID)
	if err != nil {
		return fmt.Errorf("repository: failed to spend tickets for chat %d: %w", chatID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit ticket spend: %w", err)
	}

	return nil
}

// CreditAmount начисляет бонусные средства пользователю
func (r *BalanceRepository) CreditAmount(ctx context.Context, chatID int64, amount float64) error {
	if amount <= 0 {
		return nil
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO balances (chat_id, amount) VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO UPDATE SET amount = balances.amount + $2`,
		chatID, amount)
	if err != nil {
		return fmt.Errorf("repository: failed to credit %.2f to chat %d: %w", amount, chatID, err)
	}

	return nil
}

// SpendAmount списывает бонусные средства под тем же advisory lock,
// что и списание билетов; возвращает ErrInsufficientFunds при недостатке
func (r *BalanceRepository) SpendAmount(ctx context.Context, chatID int64, amount float64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction for chat %d: %w", chatID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chatID)
	if err != nil {
		return fmt.Errorf("repository: failed to acquire lock for chat %d: %w", chatID, err)
	}

	var current float64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE((SELECT amount FROM balances WHERE chat_id = $1), 0)`,
		chatID).Scan(&current)
	if err != nil {
		return fmt.Errorf("repository: failed to get bonus balance for chat %d: %w", chatID, err)
	}

	if current < amount {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		`UPDATE balances SET amount = amount - $1 WHERE chat_id = $2`,
		amount, chatID)
	if err != nil {
		return fmt.Errorf("repository: failed to spend bonus balance for chat %d: %w", chatID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit bonus spend: %w", err)
	}

	return nil
}

// GetReferrer возвращает chat id реферера пользователя
func (r *BalanceRepository) GetReferrer(ctx context.Context, chatID int64) (int64, error) {
	var referrer int64

	err := r.db.QueryRow(ctx,
		`SELECT referrer_chat_id FROM referrals WHERE chat_id = $1`,
		chatID).Scan(&referrer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrReferrerNotFound
		}
		return 0, fmt.Errorf("repository: failed to get referrer for chat %d: %w", chatID, err)
	}

	return referrer, nil
}

// SetReferrer привязывает пользователя к рефереру; первая привязка выигрывает
func (r *BalanceRepository) SetReferrer(ctx context.Context, chatID, referrerChatID int64) error {
	if chatID == referrerChatID {
		return fmt.Errorf("repository: chat %d cannot refer itself", chatID)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO referrals (chat_id, referrer_chat_id) VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO NOTHING`,
		chatID, referrerChatID)
	if err != nil {
		return fmt.Errorf("repository: failed to set referrer for chat %d: %w", chatID, err)
	}

	return nil
}
