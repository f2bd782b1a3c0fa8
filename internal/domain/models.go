package domain

import "time"

// RequestType представляет тип заявки
type RequestType string

const (
	RequestTypeTopUp      RequestType = "TOP_UP"
	RequestTypeWithdrawal RequestType = "WITHDRAWAL"
)

// Currency представляет валюту платформы
type Currency string

const (
	CurrencyUZS Currency = "UZS"
	CurrencyRUB Currency = "RUB"
)

// RequestStatus представляет статус заявки.
// Переходы монотонны: покинутый статус не присваивается повторно,
// терминальный статус присваивается не более одного раза.
type RequestStatus string

const (
	RequestStatusPending           RequestStatus = "PENDING"
	RequestStatusPendingScreenshot RequestStatus = "PENDING_SCREENSHOT"
	RequestStatusPendingPayment    RequestStatus = "PENDING_PAYMENT"
	RequestStatusPendingAdmin      RequestStatus = "PENDING_ADMIN"
	RequestStatusApproved          RequestStatus = "APPROVED"
	RequestStatusBonusApproved     RequestStatus = "BONUS_APPROVED"
	RequestStatusCanceled          RequestStatus = "CANCELED"
	RequestStatusFailed            RequestStatus = "FAILED"
)

// Terminal сообщает, является ли статус терминальным
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusBonusApproved, RequestStatusCanceled, RequestStatusFailed:
		return true
	}
	return false
}

// Request представляет заявку на пополнение или вывод средств
type Request struct {
	ID             int64         `json:"id"`
	ChatID         int64         `json:"chat_id"`
	Type           RequestType   `json:"type"`
	Currency       Currency      `json:"currency"`
	Platform       string        `json:"platform"`
	PlatformUserID string        `json:"platform_user_id"`
	FullName       string        `json:"full_name"`
	Amount         float64       `json:"amount"`
	UniqueAmount   float64       `json:"unique_amount"`
	AdminCardID    *int64        `json:"admin_card_id,omitempty"` // только для пополнений
	CardNumber     string        `json:"card_number"`
	Code           string        `json:"code,omitempty"` // код вывода, только для выводов
	Status         RequestStatus `json:"status"`
	PartnerTxID    *string       `json:"partner_tx_id,omitempty"`
	BillID         *string       `json:"bill_id,omitempty"`
	PayURL         *string       `json:"pay_url,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Balance представляет баланс пользователя: билеты и бонусные средства.
// Оба значения никогда не опускаются ниже нуля.
type Balance struct {
	ChatID  int64   `json:"chat_id"`
	Tickets int64   `json:"tickets"`
	Amount  float64 `json:"amount"`
}

// Platform представляет справочные данные внешней платформы
type Platform struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Currency    Currency `json:"currency"`
	APIKey      string   `json:"-"` // hash для подписи запросов
	CashierPass string   `json:"-"`
	CashdeskID  string   `json:"-"`
	BaseURL     string   `json:"-"`
	MinTickets  int64    `json:"min_tickets"`
	MaxTickets  int64    `json:"max_tickets"`
	Active      bool     `json:"active"`
}

// HasCredentials проверяет, что секреты платформы заполнены
func (p *Platform) HasCredentials() bool {
	return p.APIKey != "" && p.CashierPass != "" && p.CashdeskID != ""
}

// CollectionCard представляет карту сбора средств для пополнений
type CollectionCard struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Owner  string `json:"owner"`
	Active bool   `json:"active"`
}

// Admin представляет администратора, принимающего решения по заявкам
type Admin struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PartnerUser представляет результат поиска пользователя на платформе
type PartnerUser struct {
	UserID     string
	FullName   string
	CurrencyID int
}

// Transfer представляет входящий банковский перевод из истории карты
type Transfer struct {
	ID         string
	Amount     float64
	CardNumber string
	ReceivedAt time.Time
}
