package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"go.uber.org/zap"
)

// Окно свежести при сопоставлении входящего перевода
const transferMatchWindow = 15 * time.Minute

// Запас до истечения токена, после которого он считается устаревшим
const tokenExpirySlack = 5 * time.Minute

// OsonClient - клиент API эмитента карт с короткоживущим токеном сессии.
// При 401 токен сбрасывается и логин повторяется не более одного раза
// на вызов; после исчерпания возвращается ErrTransient.
type OsonClient struct {
	baseURL    string
	deviceID   string
	phone      string
	password   string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewOsonClient создает новый клиент Oson API
func NewOsonClient(baseURL, phone, password string, timeout time.Duration, logger *zap.Logger) *OsonClient {
	return &OsonClient{
		baseURL:  baseURL,
		deviceID: uuid.New().String(),
		phone:    phone,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type osonLoginRequest struct {
	DeviceID string `json:"device_id"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type osonLoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type osonHistoryResponse struct {
	Transfers []struct {
		ID         string  `json:"id"`
		Amount     float64 `json:"amount"`
		CardNumber string  `json:"card_number"`
		ReceivedAt int64   `json:"received_at"`
	} `json:"transfers"`
}

type osonBalanceResponse struct {
	Balance float64 `json:"balance"`
}

// login получает новый токен сессии
func (c *OsonClient) login(ctx context.Context) error {
	payload, err := json.Marshal(osonLoginRequest{
		DeviceID: c.deviceID,
		Phone:    c.phone,
		Password: c.password,
	})
	if err != nil {
		return fmt.Errorf("oson: failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("oson: failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: oson login: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: oson login status %d", ErrTransient, resp.StatusCode)
	}

	var loginResp osonLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("oson: failed to decode login response: %w", err)
	}

	expiry := time.Now().Add(time.Duration(loginResp.ExpiresIn) * time.Second)

	c.mu.Lock()
	c.token = loginResp.Token
	c.tokenExpiry = expiry
	c.mu.Unlock()

	c.logger.Debug("oson token refreshed", zap.Time("expires_at", expiry))
	return nil
}

// ensureToken возвращает действующий токен, логинясь при необходимости
func (c *OsonClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	valid := token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySlack))
	c.mu.Unlock()

	if valid {
		return token, nil
	}

	if err := c.login(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

// invalidateToken сбрасывает кешированный токен
func (c *OsonClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// get выполняет GET с токеном; на 401 повторяет логин не более одного
// раза (ограниченный счетчик вместо безусловной рекурсии)
func (c *OsonClient) get(ctx context.Context, path string, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("oson: failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: oson: %v", ErrTransient, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			c.invalidateToken()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("%w: oson status %d", ErrTransient, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("oson: failed to decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: oson: token rejected after re-login", ErrTransient)
}

// CardBalance возвращает баланс карты сбора средств
func (c *OsonClient) CardBalance(ctx context.Context, cardNumber string) (float64, error) {
	var balResp osonBalanceResponse
	if err := c.get(ctx, "/cards/"+cardNumber+"/balance", &balResp); err != nil {
		return 0, err
	}
	return balResp.Balance, nil
}

// CardHistory возвращает историю входящих переводов карты
func (c *OsonClient) CardHistory(ctx context.Context, cardNumber string) ([]domain.Transfer, error) {
	var histResp osonHistoryResponse
	if err := c.get(ctx, "/cards/"+cardNumber+"/history", &histResp); err != nil {
		return nil, err
	}

	transfers := make([]domain.Transfer, 0, len(histResp.Transfers))
	for _, t := range histResp.Transfers {
		transfers = append(transfers, domain.Transfer{
			ID:         t.ID,
			Amount:     t.Amount,
			CardNumber: t.CardNumber,
			ReceivedAt: time.Unix(t.ReceivedAt, 0),
		})
	}
	return transfers, nil
}

// FindIncomingTransfer ищет входящий перевод на карту с точной суммой
// в пределах окна свежести. Отсутствие совпадения - не ошибка: заявка
// остается в ожидании оплаты, пока пользователь не повторит подтверждение.
func (c *OsonClient) FindIncomingTransfer(ctx context.Context, cardNumber string, amount float64) (*domain.Transfer, error) {
	transfers, err := c.CardHistory(ctx, cardNumber)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-transferMatchWindow)
	for i := range transfers {
		t := &transfers[i]
		if t.Amount == amount && t.ReceivedAt.After(cutoff) {
			return t, nil
		}
	}

	return nil, nil
}
