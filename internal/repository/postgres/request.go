package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/uzpay/cashdesk-bot/internal/domain"
)

const requestColumns = `id, chat_id, type, currency, platform, platform_user_id, full_name,
		amount, unique_amount, admin_card_id, card_number, code, status,
		partner_tx_id, bill_id, pay_url, created_at`

// RequestRepository реализует журнал заявок
type RequestRepository struct {
	db DBTX
}

// NewRequestRepository создает новый RequestRepository
func NewRequestRepository(db DBTX) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreateRequest создает новую заявку
func (r *RequestRepository) CreateRequest(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO requests (chat_id, type, currency, platform, platform_user_id, full_name, amount, card_number, code, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		req.ChatID, req.Type, req.Currency, req.Platform, req.PlatformUserID,
		req.FullName, req.Amount, req.CardNumber, req.Code, req.Status,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("repository: failed to create request for chat %d: %w", req.ChatID, err)
	}

	return req, nil
}

// GetRequestByID получает заявку по id
func (r *RequestRepository) GetRequestByID(ctx context.Context, id int64) (*domain.Request, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("repository: failed to get request %d: %w", id, err)
	}

	return req, nil
}

// GetOpenRequest находит незавершенную заявку по естественному ключу
// (chat_id, platform, platform_user_id, status). Так разговорная сессия
// привязывается к строке журнала без внешнего ключа в сессии; ключ
// уникален, пока у пользователя открыт один разговор.
func (r *RequestRepository) GetOpenRequest(ctx context.Context, chatID int64, platform, platformUserID string, status domain.RequestStatus) (*domain.Request, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+requestColumns+`
		 FROM requests
		 WHERE chat_id = $1 AND platform = $2 AND platform_user_id = $3 AND status = $4
		 ORDER BY created_at DESC
		 LIMIT 1`,
		chatID, platform, platformUserID, status)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("repository: failed to get open request for chat %d: %w", chatID, err)
	}

	return req, nil
}

// GetRequestsByStatus получает заявки в заданном статусе
func (r *RequestRepository) GetRequestsByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.Request, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE status = $1 ORDER BY created_at ASC`,
		status)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get requests by status %s: %w", status, err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// GetRequestsByChatID получает историю заявок пользователя
func (r *RequestRepository) GetRequestsByChatID(ctx context.Context, chatID int64) ([]*domain.Request, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE chat_id = $1 ORDER BY created_at DESC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get requests for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// UpdateRequestStatus переводит заявку из expected в next атомарно.
// Проверка ожидаемого статуса в WHERE - оптимистический контроль:
// проигравшая из двух гонящихся сторон получает ErrWrongStatus и не
// применяет эффекты повторно.
func (r *RequestRepository) UpdateRequestStatus(ctx context.Context, id int64, expected, next domain.RequestStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE requests SET status = $1 WHERE id = $2 AND status = $3`,
		next, id, expected)
	if err != nil {
		return fmt.Errorf("repository: failed to update request %d status: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		// Либо заявки нет, либо статус уже изменен
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("repository: failed to check request %d: %w", id, err)
		}
		if !exists {
			return ErrRequestNotFound
		}
		return ErrWrongStatus
	}

	return nil
}

// SetUniqueAmount записывает уникальную сумму и карту сбора для пополнения
func (r *RequestRepository) SetUniqueAmount(ctx context.Context, id int64, uniqueAmount float64, adminCardID int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE requests SET unique_amount = $1, admin_card_id = $2 WHERE id = $3`,
		uniqueAmount, adminCardID, id)
	if err != nil {
		return fmt.Errorf("repository: failed to set unique amount for request %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

// SetPartnerResult записывает идентификаторы, полученные от партнера
func (r *RequestRepository) SetPartnerResult(ctx context.Context, id int64, partnerTxID, billID, payURL *string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE requests SET partner_tx_id = $1, bill_id = $2, pay_url = $3 WHERE id = $4`,
		partnerTxID, billID, payURL, id)
	if err != nil {
		return fmt.Errorf("repository: failed to set partner result for request %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	req := &domain.Request{}
	err := row.Scan(
		&req.ID, &req.ChatID, &req.Type, &req.Currency, &req.Platform,
		&req.PlatformUserID, &req.FullName, &req.Amount, &req.UniqueAmount,
		&req.AdminCardID, &req.CardNumber, &req.Code, &req.Status,
		&req.PartnerTxID, &req.BillID, &req.PayURL, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]*domain.Request, error) {
	var requests []*domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating requests: %w", err)
	}

	return requests, nil
}
