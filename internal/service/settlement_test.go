package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"go.uber.org/zap"
)

func newTestEngine(requests *mockRequestRepo, balances *mockBalanceRepo, rates *mockRateSource) *SettlementEngine {
	return NewSettlementEngine(requests, balances, rates, zap.NewNop())
}

func TestSettlementEngine_UniqueAmount(t *testing.T) {
	engine := newTestEngine(&mockRequestRepo{}, &mockBalanceRepo{}, &mockRateSource{})
	engine.offsetFn = func() int { return 37 }

	assert.Equal(t, float64(100037), engine.UniqueAmount(100000))
}

func TestSettlementEngine_SettleTopUp(t *testing.T) {
	ctx := context.Background()
	req := &domain.Request{
		ID:     7,
		ChatID: 1001,
		Type:   domain.RequestTypeTopUp,
		Amount: 95000,
	}

	t.Run("credits tickets and referral commission", func(t *testing.T) {
		requests := new(mockRequestRepo)
		balances := new(mockBalanceRepo)

		requests.On("UpdateRequestStatus", ctx, int64(7), domain.RequestStatusPendingPayment, domain.RequestStatusApproved).Return(nil)
		// 95000 / 30000 = 3 билета
		balances.On("CreditTickets", ctx, int64(1001), int64(3)).Return(nil)
		balances.On("GetReferrer", ctx, int64(1001)).Return(int64(2002), nil)
		// 95000 / 1000 = 95.00
		balances.On("CreditAmount", ctx, int64(2002), float64(95)).Return(nil)

		engine := newTestEngine(requests, balances, &mockRateSource{})
		err := engine.SettleTopUp(ctx, req, domain.RequestStatusPendingPayment)

		require.NoError(t, err)
		requests.AssertExpectations(t)
		balances.AssertExpectations(t)
	})

	t.Run("no referrer means no commission", func(t *testing.T) {
		requests := new(mockRequestRepo)
		balances := new(mockBalanceRepo)

		requests.On("UpdateRequestStatus", ctx, int64(7), domain.RequestStatusPendingPayment, domain.RequestStatusApproved).Return(nil)
		balances.On("CreditTickets", ctx, int64(1001), int64(3)).Return(nil)
		balances.On("GetReferrer", ctx, int64(1001)).Return(int64(0), postgres.ErrReferrerNotFound)

		engine := newTestEngine(requests, balances, &mockRateSource{})
		err := engine.SettleTopUp(ctx, req, domain.RequestStatusPendingPayment)

		require.NoError(t, err)
		balances.AssertNotCalled(t, "CreditAmount")
	})

	t.Run("lost transition race applies no effects", func(t *testing.T) {
		requests := new(mockRequestRepo)
		balances := new(mockBalanceRepo)

		requests.On("UpdateRequestStatus", ctx, int64(7), domain.RequestStatusPendingPayment, domain.RequestStatusApproved).Return(postgres.ErrWrongStatus)

		engine := newTestEngine(requests, balances, &mockRateSource{})
		err := engine.SettleTopUp(ctx, req, domain.RequestStatusPendingPayment)

		assert.ErrorIs(t, err, ErrAlreadyDecided)
		balances.AssertNotCalled(t, "CreditTickets")
		balances.AssertNotCalled(t, "CreditAmount")
	})

	t.Run("missing request", func(t *testing.T) {
		requests := new(mockRequestRepo)
		requests.On("UpdateRequestStatus", ctx, int64(7), domain.RequestStatusPendingPayment, domain.RequestStatusApproved).Return(postgres.ErrRequestNotFound)

		engine := newTestEngine(requests, &mockBalanceRepo{}, &mockRateSource{})
		err := engine.SettleTopUp(ctx, req, domain.RequestStatusPendingPayment)

		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestSettlementEngine_SettleBonus(t *testing.T) {
	ctx := context.Background()
	req := &domain.Request{
		ID:     9,
		ChatID: 1001,
		Type:   domain.RequestTypeTopUp,
		Amount: 60000,
	}

	t.Run("spends bonus balance and approves", func(t *testing.T) {
		requests := new(mockRequestRepo)
		balances := new(mockBalanceRepo)

		balances.On("SpendAmount", ctx, int64(1001), float64(60000)).Return(nil)
		requests.On("UpdateRequestStatus", ctx, int64(9), domain.RequestStatusPending, domain.RequestStatusBonusApproved).Return(nil)

		engine := newTestEngine(requests, balances, &mockRateSource{})
		require.NoError(t, engine.SettleBonus(ctx, req, domain.RequestStatusPending))
		requests.AssertExpectations(t)
		balances.AssertExpectations(t)
	})

	t.Run("insufficient bonus balance", func(t *testing.T) {
		requests := new(mockRequestRepo)
		balances := new(mockBalanceRepo)

		balances.On("SpendAmount", ctx, int64(1001), float64(60000)).Return(postgres.ErrInsufficientFunds)

		engine := newTestEngine(requests, balances, &mockRateSource{})
		assert.ErrorIs(t, engine.SettleBonus(ctx, req, domain.RequestStatusPending), ErrInsufficientFunds)
		requests.AssertNotCalled(t, "UpdateRequestStatus")
	})

	t.Run("lost race refunds the spend", func(t *testing.T) {
		requests := new(mockRequestRepo)
		balances := new(mockBalanceRepo)

		balances.On("SpendAmount", ctx, int64(1001), float64(60000)).Return(nil)
		requests.On("UpdateRequestStatus", ctx, int64(9), domain.RequestStatusPending, domain.RequestStatusBonusApproved).Return(postgres.ErrWrongStatus)
		balances.On("CreditAmount", ctx, int64(1001), float64(60000)).Return(nil)

		engine := newTestEngine(requests, balances, &mockRateSource{})
		assert.ErrorIs(t, engine.SettleBonus(ctx, req, domain.RequestStatusPending), ErrAlreadyDecided)
		balances.AssertExpectations(t)
	})
}

func TestSettlementEngine_ApproveWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-withdrawal request", func(t *testing.T) {
		engine := newTestEngine(&mockRequestRepo{}, &mockBalanceRepo{}, &mockRateSource{})
		err := engine.ApproveWithdrawal(ctx, &domain.Request{ID: 3, Type: domain.RequestTypeTopUp})
		assert.Error(t, err)
	})

	t.Run("second approval loses the race", func(t *testing.T) {
		requests := new(mockRequestRepo)
		requests.On("UpdateRequestStatus", ctx, int64(3), domain.RequestStatusPendingAdmin, domain.RequestStatusApproved).
			Return(nil).Once()
		requests.On("UpdateRequestStatus", ctx, int64(3), domain.RequestStatusPendingAdmin, domain.RequestStatusApproved).
			Return(postgres.ErrWrongStatus)

		balances := new(mockBalanceRepo)
		engine := newTestEngine(requests, balances, &mockRateSource{})
		req := &domain.Request{ID: 3, Type: domain.RequestTypeWithdrawal}

		require.NoError(t, engine.ApproveWithdrawal(ctx, req))
		assert.ErrorIs(t, engine.ApproveWithdrawal(ctx, req), ErrAlreadyDecided)
	})
}

func TestSettlementEngine_NetPayout(t *testing.T) {
	ctx := context.Background()

	t.Run("UZS takes 98 percent truncated", func(t *testing.T) {
		engine := newTestEngine(&mockRequestRepo{}, &mockBalanceRepo{}, &mockRateSource{})
		net, err := engine.NetPayout(ctx, domain.CurrencyUZS, 100000)
		require.NoError(t, err)
		assert.Equal(t, float64(98000), net)
	})

	t.Run("RUB converts at current rate", func(t *testing.T) {
		rates := new(mockRateSource)
		rates.On("RUBRate", ctx).Return(float64(137.5), nil)

		engine := newTestEngine(&mockRequestRepo{}, &mockBalanceRepo{}, rates)
		net, err := engine.NetPayout(ctx, domain.CurrencyRUB, 1000)
		require.NoError(t, err)
		assert.Equal(t, float64(137500), net)
	})

	t.Run("rate source failure", func(t *testing.T) {
		rates := new(mockRateSource)
		rates.On("RUBRate", ctx).Return(float64(0), errors.New("cbu unreachable"))

		engine := newTestEngine(&mockRequestRepo{}, &mockBalanceRepo{}, rates)
		_, err := engine.NetPayout(ctx, domain.CurrencyRUB, 1000)
		assert.Error(t, err)
	})
}

func TestSettlementEngine_PlayTickets(t *testing.T) {
	ctx := context.Background()

	t.Run("spends tickets", func(t *testing.T) {
		balances := new(mockBalanceRepo)
		balances.On("SpendTickets", ctx, int64(1001), int64(2)).Return(nil)

		engine := newTestEngine(&mockRequestRepo{}, balances, &mockRateSource{})
		require.NoError(t, engine.PlayTickets(ctx, 1001, 2))
		balances.AssertExpectations(t)
	})

	t.Run("insufficient tickets", func(t *testing.T) {
		balances := new(mockBalanceRepo)
		balances.On("SpendTickets", ctx, int64(1001), int64(10)).Return(postgres.ErrInsufficientTickets)

		engine := newTestEngine(&mockRequestRepo{}, balances, &mockRateSource{})
		assert.ErrorIs(t, engine.PlayTickets(ctx, 1001, 10), ErrInsufficientTickets)
	})

	t.Run("non-positive count", func(t *testing.T) {
		engine := newTestEngine(&mockRequestRepo{}, &mockBalanceRepo{}, &mockRateSource{})
		assert.ErrorIs(t, engine.PlayTickets(ctx, 1001, 0), ErrInvalidAmount)
	})
}
