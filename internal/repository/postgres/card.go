package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
)

// CardRepository реализует справочник карт сбора средств
type CardRepository struct {
	db DBTX
}

// NewCardRepository создает новый CardRepository
func NewCardRepository(db DBTX) *CardRepository {
	return &CardRepository{db: db}
}

// GetActiveCard возвращает текущую активную карту сбора
func (r *CardRepository) GetActiveCard(ctx context.Context) (*domain.CollectionCard, error) {
	card := &domain.CollectionCard{}

	err := r.db.QueryRow(ctx,
		`SELECT id, number, owner, active FROM collection_cards WHERE active LIMIT 1`,
	).Scan(&card.ID, &card.Number, &card.Owner, &card.Active)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCard
		}
		return nil, fmt.Errorf("repository: failed to get active card: %w", err)
	}

	return card, nil
}

// GetCards возвращает все карты сбора
func (r *CardRepository) GetCards(ctx context.Context) ([]*domain.CollectionCard, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, number, owner, active FROM collection_cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.CollectionCard
	for rows.Next() {
		card := &domain.CollectionCard{}
		if err := rows.Scan(&card.ID, &card.Number, &card.Owner, &card.Active); err != nil {
			return nil, fmt.Errorf("repository: failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cards: %w", err)
	}

	return cards, nil
}

// CreateCard создает новую карту сбора
func (r *CardRepository) CreateCard(ctx context.Context, number, owner string) (*domain.CollectionCard, error) {
	card := &domain.CollectionCard{Number: number, Owner: owner}

	err := r.db.QueryRow(ctx,
		`INSERT INTO collection_cards (number, owner) VALUES ($1, $2) RETURNING id, active`,
		number, owner,
	).Scan(&card.ID, &card.Active)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create card: %w", err)
	}

	return card, nil
}

// SetCardActive делает карту активной, снимая активность с остальных.
// Активная карта сбора всегда одна.
func (r *CardRepository) SetCardActive(ctx context.Context, id int64, active bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	if active {
		if _, err := tx.Exec(ctx, `UPDATE collection_cards SET active = FALSE WHERE active`); err != nil {
			return fmt.Errorf("repository: failed to deactivate cards: %w", err)
		}
	}

	result, err := tx.Exec(ctx,
		`UPDATE collection_cards SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("repository: failed to set card %d active=%v: %w", id, active, err)
	}

	if result.RowsAffected() == 0 {
		return ErrCardNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit card activation: %w", err)
	}

	return nil
}
