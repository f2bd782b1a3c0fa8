package domain

import "context"

// RequestRepository определяет методы работы с журналом заявок
type RequestRepository interface {
	CreateRequest(ctx context.Context, req *Request) (*Request, error)
	GetRequestByID(ctx context.Context, id int64) (*Request, error)
	// GetOpenRequest находит незавершенную заявку по естественному ключу
	// (chatID, platform, platformUserID, status) - так сессия разговора
	// привязывается к строке журнала без внешнего ключа в сессии.
	GetOpenRequest(ctx context.Context, chatID int64, platform, platformUserID string, status RequestStatus) (*Request, error)
	GetRequestsByStatus(ctx context.Context, status RequestStatus) ([]*Request, error)
	GetRequestsByChatID(ctx context.Context, chatID int64) ([]*Request, error)
	// UpdateRequestStatus переводит заявку из expected в next атомарно;
	// возвращает ErrWrongStatus, если заявка уже не в expected.
	UpdateRequestStatus(ctx context.Context, id int64, expected, next RequestStatus) error
	SetUniqueAmount(ctx context.Context, id int64, uniqueAmount float64, adminCardID int64) error
	SetPartnerResult(ctx context.Context, id int64, partnerTxID, billID, payURL *string) error
}

// BalanceRepository определяет методы работы с балансами
type BalanceRepository interface {
	GetBalance(ctx context.Context, chatID int64) (*Balance, error)
	CreditTickets(ctx context.Context, chatID int64, tickets int64) error
	// SpendTickets списывает билеты с блокировкой; возвращает
	// ErrInsufficientTickets при недостатке.
	SpendTickets(ctx context.Context, chatID int64, tickets int64) error
	CreditAmount(ctx context.Context, chatID int64, amount float64) error
	// SpendAmount списывает бонусные средства; возвращает
	// ErrInsufficientFunds при недостатке.
	SpendAmount(ctx context.Context, chatID int64, amount float64) error
	GetReferrer(ctx context.Context, chatID int64) (int64, error)
	SetReferrer(ctx context.Context, chatID, referrerChatID int64) error
}

// PlatformRepository определяет методы работы со справочником платформ
type PlatformRepository interface {
	GetPlatformByName(ctx context.Context, name string) (*Platform, error)
	GetActivePlatforms(ctx context.Context) ([]*Platform, error)
	CreatePlatform(ctx context.Context, p *Platform) (*Platform, error)
	SetPlatformActive(ctx context.Context, name string, active bool) error
}

// CardRepository определяет методы работы с картами сбора средств
type CardRepository interface {
	GetActiveCard(ctx context.Context) (*CollectionCard, error)
	GetCards(ctx context.Context) ([]*CollectionCard, error)
	CreateCard(ctx context.Context, number, owner string) (*CollectionCard, error)
	SetCardActive(ctx context.Context, id int64, active bool) error
}

// AdminRepository определяет методы работы с администраторами
type AdminRepository interface {
	GetAdminByLogin(ctx context.Context, login string) (*Admin, error)
}

// PlatformGateway определяет операции партнерского Cashdesk API
type PlatformGateway interface {
	LookupUser(ctx context.Context, platform *Platform, userID string) (*PartnerUser, error)
	Deposit(ctx context.Context, platform *Platform, userID string, amount float64, cardNumber string) error
	Payout(ctx context.Context, platform *Platform, userID, code string) (float64, error)
}

// CardIssuerGateway определяет операции API эмитента карт (Oson)
type CardIssuerGateway interface {
	FindIncomingTransfer(ctx context.Context, cardNumber string, amount float64) (*Transfer, error)
}

// RateSource определяет источник курса RUB -> UZS
type RateSource interface {
	RUBRate(ctx context.Context) (float64, error)
}
