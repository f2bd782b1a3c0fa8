package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uzpay/cashdesk-bot/internal/domain"
)

const platformColumns = `id, name, currency, api_key, cashier_pass, cashdesk_id, base_url,
		min_tickets, max_tickets, active`

// PlatformRepository реализует справочник платформ
type PlatformRepository struct {
	db DBTX
}

// NewPlatformRepository создает новый PlatformRepository
func NewPlatformRepository(db DBTX) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// GetPlatformByName получает платформу по имени
func (r *PlatformRepository) GetPlatformByName(ctx context.Context, name string) (*domain.Platform, error) {
	p := &domain.Platform{}

	err := r.db.QueryRow(ctx,
		`SELECT `+platformColumns+` FROM platforms WHERE name = $1`, name,
	).Scan(&p.ID, &p.Name, &p.Currency, &p.APIKey, &p.CashierPass, &p.CashdeskID,
		&p.BaseURL, &p.MinTickets, &p.MaxTickets, &p.Active)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlatformNotFound
		}
		return nil, fmt.Errorf("repository: failed to get platform %q: %w", name, err)
	}

	return p, nil
}

// GetActivePlatforms получает активные платформы
func (r *PlatformRepository) GetActivePlatforms(ctx context.Context) ([]*domain.Platform, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+platformColumns+` FROM platforms WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get active platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*domain.Platform
	for rows.Next() {
		p := &domain.Platform{}
		err := rows.Scan(&p.ID, &p.Name, &p.Currency, &p.APIKey, &p.CashierPass,
			&p.CashdeskID, &p.BaseURL, &p.MinTickets, &p.MaxTickets, &p.Active)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating platforms: %w", err)
	}

	return platforms, nil
}

// CreatePlatform создает новую платформу
func (r *PlatformRepository) CreatePlatform(ctx context.Context, p *domain.Platform) (*domain.Platform, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO platforms (name, currency, api_key, cashier_pass, cashdesk_id, base_url, min_tickets, max_tickets, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		p.Name, p.Currency, p.APIKey, p.CashierPass, p.CashdeskID,
		p.BaseURL, p.MinTickets, p.MaxTickets, p.Active,
	).Scan(&p.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrPlatformExists
		}
		return nil, fmt.Errorf("repository: failed to create platform %q: %w", p.Name, err)
	}

	return p, nil
}

// SetPlatformActive включает или выключает платформу
func (r *PlatformRepository) SetPlatformActive(ctx context.Context, name string, active bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE platforms SET active = $1 WHERE name = $2`, active, name)
	if err != nil {
		return fmt.Errorf("repository: failed to set platform %q active=%v: %w", name, active, err)
	}

	if result.RowsAffected() == 0 {
		return ErrPlatformNotFound
	}

	return nil
}
