package service

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/uzpay/cashdesk-bot/internal/domain"
)

// Ручные testify-моки зависимостей сервисного слоя.

type mockRequestRepo struct {
	mock.Mock
}

func (m *mockRequestRepo) CreateRequest(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}

func (m *mockRequestRepo) GetRequestByID(ctx context.Context, id int64) (*domain.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}

func (m *mockRequestRepo) GetOpenRequest(ctx context.Context, chatID int64, platform, platformUserID string, status domain.RequestStatus) (*domain.Request, error) {
	args := m.Called(ctx, chatID, platform, platformUserID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}

func (m *mockRequestRepo) GetRequestsByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.Request, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Request), args.Error(1)
}

func (m *mockRequestRepo) GetRequestsByChatID(ctx context.Context, chatID int64) ([]*domain.Request, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Request), args.Error(1)
}

func (m *mockRequestRepo) UpdateRequestStatus(ctx context.Context, id int64, expected, next domain.RequestStatus) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *mockRequestRepo) SetUniqueAmount(ctx context.Context, id int64, uniqueAmount float64, adminCardID int64) error {
	args := m.Called(ctx, id, uniqueAmount, adminCardID)
	return args.Error(0)
}

func (m *mockRequestRepo) SetPartnerResult(ctx context.Context, id int64, partnerTxID, billID, payURL *string) error {
	args := m.Called(ctx, id, partnerTxID, billID, payURL)
	return args.Error(0)
}

type mockBalanceRepo struct {
	mock.Mock
}

func (m *mockBalanceRepo) GetBalance(ctx context.Context, chatID int64) (*domain.Balance, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *mockBalanceRepo) CreditTickets(ctx context.Context, chatID int64, tickets int64) error {
	args := m.Called(ctx, chatID, tickets)
	return args.Error(0)
}

func (m *mockBalanceRepo) SpendTickets(ctx context.Context, chatID int64, tickets int64) error {
	args := m.Called(ctx, chatID, tickets)
	return args.Error(0)
}

func (m *mockBalanceRepo) CreditAmount(ctx context.Context, chatID int64, amount float64) error {
	args := m.Called(ctx, chatID, amount)
	return args.Error(0)
}

func (m *mockBalanceRepo) SpendAmount(ctx context.Context, chatID int64, amount float64) error {
	args := m.Called(ctx, chatID, amount)
	return args.Error(0)
}

func (m *mockBalanceRepo) GetReferrer(ctx context.Context, chatID int64) (int64, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBalanceRepo) SetReferrer(ctx context.Context, chatID, referrerChatID int64) error {
	args := m.Called(ctx, chatID, referrerChatID)
	return args.Error(0)
}

type mockPlatformRepo struct {
	mock.Mock
}

func (m *mockPlatformRepo) GetPlatformByName(ctx context.Context, name string) (*domain.Platform, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Platform), args.Error(1)
}

func (m *mockPlatformRepo) GetActivePlatforms(ctx context.Context) ([]*domain.Platform, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Platform), args.Error(1)
}

func (m *mockPlatformRepo) CreatePlatform(ctx context.Context, p *domain.Platform) (*domain.Platform, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Platform), args.Error(1)
}

func (m *mockPlatformRepo) SetPlatformActive(ctx context.Context, name string, active bool) error {
	args := m.Called(ctx, name, active)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) LookupUser(ctx context.Context, platform *domain.Platform, userID string) (*domain.PartnerUser, error) {
	args := m.Called(ctx, platform, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PartnerUser), args.Error(1)
}

func (m *mockGateway) Deposit(ctx context.Context, platform *domain.Platform, userID string, amount float64, cardNumber string) error {
	args := m.Called(ctx, platform, userID, amount, cardNumber)
	return args.Error(0)
}

func (m *mockGateway) Payout(ctx context.Context, platform *domain.Platform, userID, code string) (float64, error) {
	args := m.Called(ctx, platform, userID, code)
	return args.Get(0).(float64), args.Error(1)
}

type mockRateSource struct {
	mock.Mock
}

func (m *mockRateSource) RUBRate(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(chatID int64, text string) error {
	args := m.Called(chatID, text)
	return args.Error(0)
}
