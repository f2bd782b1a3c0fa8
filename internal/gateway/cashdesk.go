package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/utils/sign"
)

const defaultLng = "ru"

// CashdeskClient реализует domain.PlatformGateway поверх партнерского
// Cashdesk API. Денежные вызовы (Deposit, Payout) не повторяются
// автоматически: таймаут после отправки означает неизвестный исход.
type CashdeskClient struct {
	httpClient *http.Client
}

// NewCashdeskClient создает новый клиент Cashdesk API
func NewCashdeskClient(timeout time.Duration) *CashdeskClient {
	return &CashdeskClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type lookupResponse struct {
	UserID     json.Number `json:"UserId"`
	Name       string      `json:"Name"`
	CurrencyID int         `json:"CurrencyId"`
}

type depositRequest struct {
	CashdeskID string `json:"cashdeskId"`
	Lng        string `json:"lng"`
	Summa      string `json:"summa"`
	Confirm    string `json:"confirm"`
	CardNumber string `json:"cardNumber,omitempty"`
}

type payoutRequest struct {
	CashdeskID string `json:"cashdeskId"`
	Lng        string `json:"lng"`
	Code       string `json:"code"`
	Confirm    string `json:"confirm"`
}

type operationResponse struct {
	Success    bool    `json:"success"`
	SuccessAlt bool    `json:"Success"`
	Summa      float64 `json:"Summa"`
	Message    string  `json:"Message"`
}

func (r *operationResponse) ok() bool {
	return r.Success || r.SuccessAlt
}

// LookupUser ищет пользователя на платформе
func (c *CashdeskClient) LookupUser(ctx context.Context, platform *domain.Platform, userID string) (*domain.PartnerUser, error) {
	if !platform.HasCredentials() {
		return nil, ErrConfiguration
	}

	confirm := sign.Confirm(userID, platform.APIKey)
	signature := sign.Lookup(platform.APIKey, platform.CashierPass, platform.CashdeskID, userID)

	url := fmt.Sprintf("%s/Users/%s?confirm=%s&cashdeskId=%s",
		platform.BaseURL, userID, confirm, platform.CashdeskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cashdesk: failed to create lookup request: %w", err)
	}
	req.Header.Set("sign", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var lookupResp lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookupResp); err != nil {
		return nil, fmt.Errorf("cashdesk: failed to decode lookup response: %w", err)
	}

	// Партнер возвращает UserId=0, если пользователь не найден
	if lookupResp.UserID.String() == "0" || lookupResp.Name == "" {
		return nil, ErrNotFound
	}

	return &domain.PartnerUser{
		UserID:     lookupResp.UserID.String(),
		FullName:   lookupResp.Name,
		CurrencyID: lookupResp.CurrencyID,
	}, nil
}

// Deposit пополняет счет пользователя на платформе
func (c *CashdeskClient) Deposit(ctx context.Context, platform *domain.Platform, userID string, amount float64, cardNumber string) error {
	if !platform.HasCredentials() {
		return ErrConfiguration
	}

	summa := strconv.FormatFloat(amount, 'f', -1, 64)
	body := depositRequest{
		CashdeskID: platform.CashdeskID,
		Lng:        defaultLng,
		Summa:      summa,
		Confirm:    sign.Confirm(userID, platform.APIKey),
		CardNumber: cardNumber,
	}
	signature := sign.Deposit(platform.APIKey, platform.CashierPass, platform.CashdeskID, defaultLng, userID, summa)

	url := fmt.Sprintf("%s/Deposit/%s/Add", platform.BaseURL, userID)

	opResp, err := c.post(ctx, url, signature, body)
	if err != nil {
		return err
	}

	if !opResp.ok() {
		return NewRemoteError(opResp.Message)
	}

	return nil
}

// Payout выплачивает средства по коду вывода и возвращает брутто-сумму
func (c *CashdeskClient) Payout(ctx context.Context, platform *domain.Platform, userID, code string) (float64, error) {
	if !platform.HasCredentials() {
		return 0, ErrConfiguration
	}

	body := payoutRequest{
		CashdeskID: platform.CashdeskID,
		Lng:        defaultLng,
		Code:       code,
		Confirm:    sign.Confirm(userID, platform.APIKey),
	}
	signature := sign.Payout(platform.APIKey, platform.CashierPass, platform.CashdeskID, defaultLng, userID, code)

	url := fmt.Sprintf("%s/Deposit/%s/Payout", platform.BaseURL, userID)

	opResp, err := c.post(ctx, url, signature, body)
	if err != nil {
		return 0, err
	}

	if !opResp.ok() {
		return 0, NewRemoteError(opResp.Message)
	}

	return opResp.Summa, nil
}

// post выполняет подписанный POST и разбирает общий ответ операции
func (c *CashdeskClient) post(ctx context.Context, url, signature string, body any) (*operationResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cashdesk: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cashdesk: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sign", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var opResp operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&opResp); err != nil {
		return nil, fmt.Errorf("cashdesk: failed to decode response: %w", err)
	}

	return &opResp, nil
}

// classifyStatus переводит HTTP статус в таксономию ошибок
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, code)
	default:
		return fmt.Errorf("cashdesk: unexpected status code: %d", code)
	}
}
