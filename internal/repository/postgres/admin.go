package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
)

// AdminRepository реализует хранение администраторов
type AdminRepository struct {
	db DBTX
}

// NewAdminRepository создает новый AdminRepository
func NewAdminRepository(db DBTX) *AdminRepository {
	return &AdminRepository{db: db}
}

// GetAdminByLogin получает администратора по логину
func (r *AdminRepository) GetAdminByLogin(ctx context.Context, login string) (*domain.Admin, error) {
	admin := &domain.Admin{}

	err := r.db.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM admins WHERE login = $1`,
		login,
	).Scan(&admin.ID, &admin.Login, &admin.PasswordHash, &admin.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("repository: failed to get admin %q: %w", login, err)
	}

	return admin, nil
}
