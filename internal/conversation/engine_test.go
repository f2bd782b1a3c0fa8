package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/service"
	"github.com/uzpay/cashdesk-bot/internal/session"
	"go.uber.org/zap"
)

const testChatID int64 = 1001

type testEnv struct {
	engine    *Engine
	sessions  *session.Store
	messenger *fakeMessenger
	requests  *fakeRequests
	balances  *fakeBalances
	gateway   *fakeGateway
	issuer    *fakeIssuer
	cards     *fakeCards
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	platforms := &fakePlatforms{platforms: map[string]*domain.Platform{
		"linebet": {
			ID: 1, Name: "linebet", Currency: domain.CurrencyUZS,
			APIKey: "H", CashierPass: "P", CashdeskID: "1",
			MinTickets: 1, MaxTickets: 10, Active: true,
		},
	}}

	env := &testEnv{
		sessions:  session.NewStore(),
		messenger: &fakeMessenger{},
		requests:  newFakeRequests(),
		balances:  newFakeBalances(),
		gateway:   &fakeGateway{},
		issuer:    &fakeIssuer{},
		cards:     &fakeCards{active: &domain.CollectionCard{ID: 5, Number: "9860010203040506", Owner: "KASSA", Active: true}},
	}

	settlement := service.NewSettlementEngine(env.requests, env.balances, nil, zap.NewNop())
	env.engine = NewEngine(
		env.sessions, env.requests, env.balances, platforms, env.cards,
		env.gateway, env.issuer, settlement, env.messenger, zap.NewNop(),
	)
	return env
}

// driveToConfirmation проводит пополнение до сводки подтверждения
func driveToConfirmation(ctx context.Context, env *testEnv) {
	env.engine.HandleCallback(ctx, testChatID, "topup")
	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	env.engine.HandleText(ctx, testChatID, "123")
	env.engine.HandleCallback(ctx, testChatID, "user_ok")
	env.engine.HandleText(ctx, testChatID, "8600 1234 1234 1234")
	env.engine.HandleText(ctx, testChatID, "100000")
}

func TestIsValidTopUpAmount(t *testing.T) {
	assert.False(t, IsValidTopUpAmount(9999))
	assert.True(t, IsValidTopUpAmount(10000))
	assert.True(t, IsValidTopUpAmount(10000000))
	assert.False(t, IsValidTopUpAmount(10000001))
}

func TestEngine_ForwardTraversal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.engine.HandleCallback(ctx, testChatID, "topup")
	sess := env.sessions.Get(testChatID)
	assert.Equal(t, StepPlatformSelection, sess.Step)

	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	assert.Equal(t, StepUserIDInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "123")
	assert.Equal(t, StepUserApproval, sess.Step)
	assert.Equal(t, "123", sess.PlatformUserID)
	assert.Equal(t, "Test User", sess.FullName)

	env.engine.HandleCallback(ctx, testChatID, "user_ok")
	assert.Equal(t, StepCardInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "8600 1234 1234 1234")
	assert.Equal(t, StepAmountInput, sess.Step)
	assert.Equal(t, "8600123412341234", sess.CardNumber)

	env.engine.HandleText(ctx, testChatID, "100000")
	assert.Equal(t, StepConfirmation, sess.Step)

	// Сводка создает строку журнала в PENDING
	req, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusPending)
	require.NoError(t, err)
	assert.Equal(t, float64(100000), req.Amount)
	assert.Equal(t, domain.RequestTypeTopUp, req.Type)
}

func TestEngine_BackPopsNavigationStack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	driveToConfirmation(ctx, env)
	sess := env.sessions.Get(testChatID)
	require.Equal(t, StepConfirmation, sess.Step)

	// Назад из сводки возвращает к сумме, второй раз - к карте,
	// в точности в порядке прохождения вперед
	env.engine.HandleCallback(ctx, testChatID, "back")
	assert.Equal(t, StepAmountInput, sess.Step)

	env.engine.HandleCallback(ctx, testChatID, "back")
	assert.Equal(t, StepCardInput, sess.Step)
}

func TestEngine_BackOnEmptyStackGoesToMainMenu(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.engine.HandleCallback(ctx, testChatID, "topup")
	sess := env.sessions.Get(testChatID)

	env.engine.HandleCallback(ctx, testChatID, "back")
	assert.Equal(t, StepMainMenu, sess.Step)
}

func TestEngine_UnknownCallbackKeepsState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.engine.HandleCallback(ctx, testChatID, "topup")
	sess := env.sessions.Get(testChatID)
	require.Equal(t, StepPlatformSelection, sess.Step)

	env.engine.HandleCallback(ctx, testChatID, "no-such-token")
	assert.Equal(t, StepPlatformSelection, sess.Step)
	assert.Contains(t, env.messenger.last().Text, "Неизвестная команда")
}

func TestEngine_PromptRetraction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.engine.HandleCallback(ctx, testChatID, "topup")
	first := env.messenger.last().ID

	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	assert.Contains(t, env.messenger.deleted, first, "previous prompt must be retracted on state entry")
}

func TestEngine_InvalidInputsReprompt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.engine.HandleCallback(ctx, testChatID, "topup")
	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	sess := env.sessions.Get(testChatID)

	env.engine.HandleText(ctx, testChatID, "not-a-number")
	assert.Equal(t, StepUserIDInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "123")
	env.engine.HandleCallback(ctx, testChatID, "user_ok")

	env.engine.HandleText(ctx, testChatID, "8600 1234")
	assert.Equal(t, StepCardInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "8600123412341234")

	env.engine.HandleText(ctx, testChatID, "9999")
	assert.Equal(t, StepAmountInput, sess.Step)
	env.engine.HandleText(ctx, testChatID, "10000001")
	assert.Equal(t, StepAmountInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "10000")
	assert.Equal(t, StepConfirmation, sess.Step)
}

func TestEngine_TopUpPaymentFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	driveToConfirmation(ctx, env)
	sess := env.sessions.Get(testChatID)

	env.engine.HandleCallback(ctx, testChatID, "confirm")
	require.Equal(t, StepPaymentInstruction, sess.Step)

	req, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusPendingPayment)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, req.UniqueAmount, float64(100000))
	assert.Less(t, req.UniqueAmount, float64(100100))
	require.NotNil(t, req.AdminCardID)
	assert.Equal(t, int64(5), *req.AdminCardID)

	// Перевод еще не пришел: заявка остается в PENDING_PAYMENT
	env.engine.HandleCallback(ctx, testChatID, "paid")
	assert.Equal(t, StepPaymentInstruction, sess.Step)
	assert.Contains(t, env.messenger.last().Text, "не найден")

	// Перевод найден: расчеты и депозит на платформе
	env.issuer.transfer = &domain.Transfer{
		ID:         "tr-777",
		Amount:     req.UniqueAmount,
		CardNumber: "9860010203040506",
		ReceivedAt: time.Now(),
	}
	env.engine.HandleCallback(ctx, testChatID, "paid")

	assert.Equal(t, domain.RequestStatusApproved, env.requests.byID(req.ID).Status)
	assert.Equal(t, 1, env.gateway.depositCalls)
	assert.Equal(t, StepMainMenu, sess.Step)

	// Идентификатор перевода записан как свидетельство оплаты
	require.NotNil(t, env.requests.byID(req.ID).PartnerTxID)
	assert.Equal(t, "tr-777", *env.requests.byID(req.ID).PartnerTxID)

	balance, err := env.balances.GetBalance(ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Tickets) // floor(100000/30000)
}

func TestEngine_TopUpDepositFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	driveToConfirmation(ctx, env)
	env.engine.HandleCallback(ctx, testChatID, "confirm")

	req, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusPendingPayment)
	require.NoError(t, err)

	env.issuer.transfer = &domain.Transfer{Amount: req.UniqueAmount, ReceivedAt: time.Now()}
	env.gateway.depositErr = assert.AnError

	env.engine.HandleCallback(ctx, testChatID, "paid")
	assert.Equal(t, domain.RequestStatusFailed, env.requests.byID(req.ID).Status)
}

func TestEngine_WithdrawalScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := env.sessions.Get(testChatID)

	env.engine.HandleCallback(ctx, testChatID, "withdraw")
	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	env.engine.HandleText(ctx, testChatID, "123")
	env.engine.HandleCallback(ctx, testChatID, "user_ok")
	env.engine.HandleText(ctx, testChatID, "8600123412341234")
	require.Equal(t, StepCodeInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "ABCD1234")
	require.Equal(t, StepConfirmation, sess.Step)

	req, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestTypeWithdrawal, req.Type)
	assert.Equal(t, "ABCD1234", req.Code)

	env.engine.HandleCallback(ctx, testChatID, "confirm")
	assert.Equal(t, StepAdminGate, sess.Step)
	assert.Equal(t, domain.RequestStatusPendingAdmin, env.requests.byID(req.ID).Status)

	// Деньги не двигаются до решения администратора
	assert.Equal(t, 0, env.gateway.payoutCalls)
}

func TestEngine_BonusFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := env.sessions.Get(testChatID)

	require.NoError(t, env.balances.CreditAmount(ctx, testChatID, 200000))

	env.engine.HandleCallback(ctx, testChatID, "bonus")
	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	env.engine.HandleText(ctx, testChatID, "123")
	env.engine.HandleCallback(ctx, testChatID, "user_ok")
	require.Equal(t, StepAmountInput, sess.Step, "bonus flow skips card input")

	// Вне границ платформы
	env.engine.HandleText(ctx, testChatID, "11")
	assert.Equal(t, StepAmountInput, sess.Step)

	env.engine.HandleText(ctx, testChatID, "2")
	require.Equal(t, StepConfirmation, sess.Step)

	env.engine.HandleCallback(ctx, testChatID, "confirm")

	req, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusBonusApproved)
	require.NoError(t, err)
	assert.Equal(t, float64(60000), req.Amount)
	assert.Equal(t, 1, env.gateway.depositCalls)

	balance, err := env.balances.GetBalance(ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, float64(140000), balance.Amount)
}

func TestEngine_BonusInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.engine.HandleCallback(ctx, testChatID, "bonus")
	env.engine.HandleCallback(ctx, testChatID, "platform:linebet")
	env.engine.HandleText(ctx, testChatID, "123")
	env.engine.HandleCallback(ctx, testChatID, "user_ok")
	env.engine.HandleText(ctx, testChatID, "2")
	env.engine.HandleCallback(ctx, testChatID, "confirm")

	assert.Contains(t, env.messenger.last().Text, "Недостаточно бонусных средств")
	assert.Equal(t, 0, env.gateway.depositCalls)

	balance, err := env.balances.GetBalance(ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, float64(0), balance.Amount)
}

func TestEngine_ReconfirmationCancelsStaleDraft(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess := env.sessions.Get(testChatID)

	driveToConfirmation(ctx, env)
	first, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusPending)
	require.NoError(t, err)

	// Назад к сумме и вперед с новой суммой: старый черновик отменен
	env.engine.HandleCallback(ctx, testChatID, "back")
	env.engine.HandleText(ctx, testChatID, "200000")
	require.Equal(t, StepConfirmation, sess.Step)

	assert.Equal(t, domain.RequestStatusCanceled, env.requests.byID(first.ID).Status)

	current, err := env.requests.GetOpenRequest(ctx, testChatID, "linebet", "123", domain.RequestStatusPending)
	require.NoError(t, err)
	assert.Equal(t, float64(200000), current.Amount)
}
