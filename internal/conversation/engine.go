// Package conversation реализует пошаговые сценарии разговора:
// пополнение, вывод и бонусное пополнение. Каждое состояние показывает
// ровно одно приглашение, предыдущие приглашения удаляются из чата.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/gateway"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
	"github.com/uzpay/cashdesk-bot/internal/service"
	"github.com/uzpay/cashdesk-bot/internal/session"
	"github.com/uzpay/cashdesk-bot/internal/utils/card"
	"github.com/uzpay/cashdesk-bot/internal/utils/money"
	"go.uber.org/zap"
)

// Сценарии
const (
	FlowTopUp    = "topup"
	FlowWithdraw = "withdraw"
	FlowBonus    = "bonus"
)

// Теги состояний сценария
const (
	StepMainMenu           = "MAIN_MENU"
	StepPlatformSelection  = "PLATFORM_SELECTION"
	StepUserIDInput        = "USER_ID_INPUT"
	StepUserApproval       = "USER_APPROVAL"
	StepCardInput          = "CARD_INPUT"
	StepCodeInput          = "CODE_INPUT"
	StepAmountInput        = "AMOUNT_INPUT"
	StepConfirmation       = "CONFIRMATION"
	StepPaymentInstruction = "PAYMENT_INSTRUCTION"
	StepAdminGate          = "ADMIN_GATE"
)

// Токены кнопок
const (
	cbTopUp    = "topup"
	cbWithdraw = "withdraw"
	cbBonus    = "bonus"
	cbBack     = "back"
	cbCancel   = "cancel"
	cbUserOK   = "user_ok"
	cbConfirm  = "confirm"
	cbPaid     = "paid"

	platformPrefix = "platform:"
)

// Границы суммы пополнения, включительно
const (
	MinTopUpAmount = 10_000
	MaxTopUpAmount = 10_000_000
)

var (
	userIDPattern = regexp.MustCompile(`^\d{1,12}$`)
	codePattern   = regexp.MustCompile(`^[A-Za-z0-9]{4,16}$`)
)

// Button - кнопка под сообщением; Data уходит обратно callback-токеном
type Button struct {
	Label string
	Data  string
}

// Messenger отправляет и удаляет сообщения чата
type Messenger interface {
	Send(chatID int64, text string, buttons []Button) (messageID int, err error)
	Delete(chatID int64, messageID int) error
}

// Engine управляет состоянием разговора каждого пользователя.
// Методы Engine для одного chat id вызываются строго последовательно -
// это обеспечивает диспетчер воркеров, поэтому сессия мутируется без
// блокировок.
type Engine struct {
	sessions   *session.Store
	requests   domain.RequestRepository
	balances   domain.BalanceRepository
	platforms  domain.PlatformRepository
	cards      domain.CardRepository
	gateway    domain.PlatformGateway
	issuer     domain.CardIssuerGateway
	settlement *service.SettlementEngine
	messenger  Messenger
	logger     *zap.Logger
}

// NewEngine создает новый Engine
func NewEngine(
	sessions *session.Store,
	requests domain.RequestRepository,
	balances domain.BalanceRepository,
	platforms domain.PlatformRepository,
	cards domain.CardRepository,
	platformGateway domain.PlatformGateway,
	issuer domain.CardIssuerGateway,
	settlement *service.SettlementEngine,
	messenger Messenger,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		sessions:   sessions,
		requests:   requests,
		balances:   balances,
		platforms:  platforms,
		cards:      cards,
		gateway:    platformGateway,
		issuer:     issuer,
		settlement: settlement,
		messenger:  messenger,
		logger:     logger,
	}
}

// HandleCommand обрабатывает команду /start: сброс в главное меню
func (e *Engine) HandleCommand(ctx context.Context, chatID int64, command string) {
	sess := e.sessions.Get(chatID)
	if command == "start" {
		e.toMainMenu(ctx, sess)
		return
	}
	e.invalidCommand(sess)
}

// HandleCallback обрабатывает нажатие кнопки
func (e *Engine) HandleCallback(ctx context.Context, chatID int64, data string) {
	sess := e.sessions.Get(chatID)

	switch {
	case data == cbTopUp || data == cbWithdraw || data == cbBonus:
		e.startFlow(ctx, sess, data)
	case data == cbBack:
		e.back(ctx, sess)
	case data == cbCancel:
		e.cancel(ctx, sess)
	case strings.HasPrefix(data, platformPrefix):
		e.selectPlatform(ctx, sess, strings.TrimPrefix(data, platformPrefix))
	case data == cbUserOK:
		e.approveUser(ctx, sess)
	case data == cbConfirm:
		e.confirm(ctx, sess)
	case data == cbPaid:
		e.confirmPayment(ctx, sess)
	default:
		e.invalidCommand(sess)
	}
}

// HandleText обрабатывает свободный текстовый ввод текущего состояния
func (e *Engine) HandleText(ctx context.Context, chatID int64, text string) {
	sess := e.sessions.Get(chatID)
	text = strings.TrimSpace(text)

	switch sess.Step {
	case StepUserIDInput:
		e.inputUserID(ctx, sess, text)
	case StepCardInput:
		e.inputCard(ctx, sess, text)
	case StepCodeInput:
		e.inputCode(ctx, sess, text)
	case StepAmountInput:
		e.inputAmount(ctx, sess, text)
	default:
		e.invalidCommand(sess)
	}
}

// startFlow начинает сценарий заново с выбора платформы
func (e *Engine) startFlow(ctx context.Context, sess *session.Session, flow string) {
	sess.ClearScratch()
	sess.Flow = flow
	sess.Step = StepPlatformSelection
	e.enter(ctx, sess)
}

// back снимает предыдущее состояние со стека и повторяет его приглашение;
// пустой стек означает возврат в главное меню
func (e *Engine) back(ctx context.Context, sess *session.Session) {
	step, ok := sess.Pop()
	if !ok {
		e.toMainMenu(ctx, sess)
		return
	}
	sess.Step = step
	e.enter(ctx, sess)
}

func (e *Engine) cancel(ctx context.Context, sess *session.Session) {
	e.toMainMenu(ctx, sess)
}

func (e *Engine) toMainMenu(ctx context.Context, sess *session.Session) {
	sess.ClearScratch()
	sess.Step = StepMainMenu
	e.enter(ctx, sess)
}

// advance переводит сценарий вперед, запоминая текущее состояние для
// кнопки "Назад"
func (e *Engine) advance(ctx context.Context, sess *session.Session, next string) {
	sess.Push(sess.Step)
	sess.Step = next
	e.enter(ctx, sess)
}

// enter показывает приглашение текущего состояния. Вызывается и при
// движении вперед, и при возврате по стеку.
func (e *Engine) enter(ctx context.Context, sess *session.Session) {
	switch sess.Step {
	case StepMainMenu:
		e.promptMainMenu(ctx, sess)
	case StepPlatformSelection:
		e.promptPlatformSelection(ctx, sess)
	case StepUserIDInput:
		e.prompt(sess, "Введите ID игрового счета:", navButtons())
	case StepUserApproval:
		e.prompt(sess,
			fmt.Sprintf("Счет найден: %s. Продолжить?", sess.FullName),
			append([]Button{{Label: "Да", Data: cbUserOK}}, navButtons()...))
	case StepCardInput:
		e.prompt(sess, "Введите номер карты (16 цифр):", navButtons())
	case StepCodeInput:
		e.prompt(sess, "Введите код вывода, полученный на платформе:", navButtons())
	case StepAmountInput:
		e.promptAmount(ctx, sess)
	case StepConfirmation:
		e.enterConfirmation(ctx, sess)
	case StepPaymentInstruction:
		e.enterPaymentInstruction(ctx, sess)
	case StepAdminGate:
		e.prompt(sess, "Заявка отправлена администратору. Ожидайте решения.", nil)
	default:
		e.logger.Warn("unknown conversation step", zap.String("step", sess.Step))
		e.toMainMenu(ctx, sess)
	}
}

func (e *Engine) promptMainMenu(_ context.Context, sess *session.Session) {
	e.prompt(sess, "Выберите действие:", []Button{
		{Label: "Пополнить", Data: cbTopUp},
		{Label: "Вывести", Data: cbWithdraw},
		{Label: "Бонусное пополнение", Data: cbBonus},
	})
}

func (e *Engine) promptPlatformSelection(ctx context.Context, sess *session.Session) {
	platforms, err := e.platforms.GetActivePlatforms(ctx)
	if err != nil {
		e.logger.Error("failed to list platforms", zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	buttons := make([]Button, 0, len(platforms)+2)
	for _, p := range platforms {
		buttons = append(buttons, Button{Label: p.Name, Data: platformPrefix + p.Name})
	}
	e.prompt(sess, "Выберите платформу:", append(buttons, navButtons()...))
}

func (e *Engine) promptAmount(ctx context.Context, sess *session.Session) {
	if sess.Flow == FlowBonus {
		e.promptTicketCount(ctx, sess)
		return
	}
	e.prompt(sess,
		fmt.Sprintf("Введите сумму пополнения (от %d до %d):", MinTopUpAmount, MaxTopUpAmount),
		navButtons())
}

// selectPlatform фиксирует выбранную платформу и переходит к вводу ID
func (e *Engine) selectPlatform(ctx context.Context, sess *session.Session, name string) {
	if sess.Step != StepPlatformSelection {
		e.invalidCommand(sess)
		return
	}

	platform, err := e.platforms.GetPlatformByName(ctx, name)
	if err != nil {
		if errors.Is(err, postgres.ErrPlatformNotFound) {
			e.invalidCommand(sess)
			return
		}
		e.logger.Error("failed to get platform", zap.String("platform", name), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	if !platform.Active || !platform.HasCredentials() {
		e.prompt(sess, "Платформа недоступна. Свяжитесь с администратором.", navButtons())
		return
	}

	sess.Platform = platform.Name
	e.advance(ctx, sess, StepUserIDInput)
}

// inputUserID валидирует ID, находит счет на платформе и показывает имя
// владельца для подтверждения
func (e *Engine) inputUserID(ctx context.Context, sess *session.Session, text string) {
	if !userIDPattern.MatchString(text) {
		e.prompt(sess, "Неверный формат ID. Введите ID игрового счета:", navButtons())
		return
	}

	platform, err := e.platforms.GetPlatformByName(ctx, sess.Platform)
	if err != nil {
		e.logger.Error("failed to get platform", zap.String("platform", sess.Platform), zap.Error(err))
		e.prompt(sess, "Сервис временно недоступен. Попробуйте позже.", navButtons())
		return
	}

	user, err := e.gateway.LookupUser(ctx, platform, text)
	if err != nil {
		e.promptLookupFailure(sess, err)
		return
	}

	sess.PlatformUserID = user.UserID
	sess.FullName = user.FullName
	e.advance(ctx, sess, StepUserApproval)
}

func (e *Engine) promptLookupFailure(sess *session.Session, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		e.prompt(sess, "Счет не найден. Проверьте ID и введите снова:", navButtons())
	case errors.Is(err, gateway.ErrUnauthorized), errors.Is(err, gateway.ErrConfiguration):
		e.logger.Error("platform credentials rejected", zap.String("platform", sess.Platform), zap.Error(err))
		e.prompt(sess, "Платформа недоступна. Свяжитесь с администратором.", navButtons())
	default:
		e.logger.Warn("user lookup failed", zap.String("platform", sess.Platform), zap.Error(err))
		e.prompt(sess, "Не удалось проверить счет. Попробуйте позже.", navButtons())
	}
}

// approveUser подтверждает найденный счет и ведет сценарий дальше:
// пополнение и вывод собирают карту, бонусное пополнение - сразу сумму
func (e *Engine) approveUser(ctx context.Context, sess *session.Session) {
	if sess.Step != StepUserApproval {
		e.invalidCommand(sess)
		return
	}

	if sess.Flow == FlowBonus {
		e.advance(ctx, sess, StepAmountInput)
		return
	}
	e.advance(ctx, sess, StepCardInput)
}

func (e *Engine) inputCard(ctx context.Context, sess *session.Session, text string) {
	if !card.Validate(text) {
		e.prompt(sess, "Неверный номер карты. Введите 16 цифр:", navButtons())
		return
	}

	sess.CardNumber = card.Normalize(text)
	if sess.Flow == FlowWithdraw {
		e.advance(ctx, sess, StepCodeInput)
		return
	}
	e.advance(ctx, sess, StepAmountInput)
}

func (e *Engine) inputCode(ctx context.Context, sess *session.Session, text string) {
	if !codePattern.MatchString(text) {
		e.prompt(sess, "Неверный формат кода. Введите код вывода:", navButtons())
		return
	}

	sess.Code = strings.ToUpper(text)
	e.advance(ctx, sess, StepConfirmation)
}

func (e *Engine) inputAmount(ctx context.Context, sess *session.Session, text string) {
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		e.promptAmountError(ctx, sess)
		return
	}

	if sess.Flow == FlowBonus {
		e.inputTicketCount(ctx, sess, value)
		return
	}

	if !IsValidTopUpAmount(value) {
		e.promptAmountError(ctx, sess)
		return
	}

	sess.Amount = value
	e.advance(ctx, sess, StepConfirmation)
}

func (e *Engine) promptAmountError(ctx context.Context, sess *session.Session) {
	if sess.Flow == FlowBonus {
		e.promptTicketCount(ctx, sess)
		return
	}
	e.prompt(sess,
		fmt.Sprintf("Неверная сумма. Введите целое число от %d до %d:", MinTopUpAmount, MaxTopUpAmount),
		navButtons())
}

// IsValidTopUpAmount проверяет сумму пополнения, границы включительно
func IsValidTopUpAmount(amount int64) bool {
	return amount >= MinTopUpAmount && amount <= MaxTopUpAmount
}

// enterConfirmation показывает сводку заявки и создает строку журнала в
// статусе PENDING. Возврат на этот шаг отменяет прежнюю незавершенную
// строку и создает новую с актуальными полями.
func (e *Engine) enterConfirmation(ctx context.Context, sess *session.Session) {
	req, err := e.ensurePendingRequest(ctx, sess)
	if err != nil {
		e.logger.Error("failed to persist request",
			zap.Int64("chat_id", sess.ChatID),
			zap.Error(err),
		)
		e.prompt(sess, "Не удалось сохранить заявку. Попробуйте позже.", navButtons())
		return
	}

	e.prompt(sess, e.confirmationSummary(sess, req),
		append([]Button{{Label: "Подтвердить", Data: cbConfirm}}, navButtons()...))
}

func (e *Engine) confirmationSummary(sess *session.Session, req *domain.Request) string {
	switch sess.Flow {
	case FlowWithdraw:
		return fmt.Sprintf("Вывод со счета %s (%s) на карту %s, код %s. Подтвердить?",
			sess.PlatformUserID, sess.Platform, card.Mask(sess.CardNumber), sess.Code)
	case FlowBonus:
		return fmt.Sprintf("Бонусное пополнение счета %s (%s) на %.0f UZS (%d билетов). Подтвердить?",
			sess.PlatformUserID, sess.Platform, req.Amount, sess.Amount)
	default:
		return fmt.Sprintf("Пополнение счета %s (%s) на %.0f UZS с карты %s. Подтвердить?",
			sess.PlatformUserID, sess.Platform, req.Amount, card.Mask(sess.CardNumber))
	}
}

// ensurePendingRequest создает строку журнала для текущего разговора.
// Строка находится по естественному ключу (chat id, платформа, ID счета,
// статус): прямой ссылки на заявку сессия не хранит.
func (e *Engine) ensurePendingRequest(ctx context.Context, sess *session.Session) (*domain.Request, error) {
	existing, err := e.requests.GetOpenRequest(ctx, sess.ChatID, sess.Platform, sess.PlatformUserID, domain.RequestStatusPending)
	if err != nil && !errors.Is(err, postgres.ErrRequestNotFound) {
		return nil, err
	}
	if existing != nil {
		// Статусы монотонны: прежний черновик отменяется, не правится
		if err := e.requests.UpdateRequestStatus(ctx, existing.ID, domain.RequestStatusPending, domain.RequestStatusCanceled); err != nil {
			return nil, err
		}
	}

	platform, err := e.platforms.GetPlatformByName(ctx, sess.Platform)
	if err != nil {
		return nil, err
	}

	req := &domain.Request{
		ChatID:         sess.ChatID,
		Type:           e.requestType(sess.Flow),
		Currency:       platform.Currency,
		Platform:       sess.Platform,
		PlatformUserID: sess.PlatformUserID,
		FullName:       sess.FullName,
		Amount:         e.requestAmount(sess),
		CardNumber:     sess.CardNumber,
		Code:           sess.Code,
		Status:         domain.RequestStatusPending,
	}
	return e.requests.CreateRequest(ctx, req)
}

func (e *Engine) requestType(flow string) domain.RequestType {
	if flow == FlowWithdraw {
		return domain.RequestTypeWithdrawal
	}
	return domain.RequestTypeTopUp
}

func (e *Engine) requestAmount(sess *session.Session) float64 {
	if sess.Flow == FlowBonus {
		// В бонусном сценарии Amount сессии - число билетов
		return float64(sess.Amount * money.TicketPrice)
	}
	if sess.Flow == FlowWithdraw {
		// Сумма вывода известна только после выплаты партнера
		return 0
	}
	return float64(sess.Amount)
}

// confirm обрабатывает кнопку подтверждения сводки
func (e *Engine) confirm(ctx context.Context, sess *session.Session) {
	if sess.Step != StepConfirmation {
		e.invalidCommand(sess)
		return
	}

	switch sess.Flow {
	case FlowTopUp:
		e.confirmTopUp(ctx, sess)
	case FlowWithdraw:
		e.confirmWithdraw(ctx, sess)
	case FlowBonus:
		e.confirmBonus(ctx, sess)
	default:
		e.invalidCommand(sess)
	}
}

// openRequest находит строку журнала текущего разговора в ожидаемом статусе
func (e *Engine) openRequest(ctx context.Context, sess *session.Session, status domain.RequestStatus) (*domain.Request, error) {
	return e.requests.GetOpenRequest(ctx, sess.ChatID, sess.Platform, sess.PlatformUserID, status)
}

// invalidCommand отвечает на неизвестный callback без смены состояния
func (e *Engine) invalidCommand(sess *session.Session) {
	id, err := e.messenger.Send(sess.ChatID, "Неизвестная команда. Используйте кнопки под сообщением.", nil)
	if err != nil {
		e.logger.Warn("failed to send message", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		return
	}
	sess.TrackMessage(id)
}

// prompt убирает прежние приглашения и показывает ровно одно новое
func (e *Engine) prompt(sess *session.Session, text string, buttons []Button) {
	for _, id := range sess.TakeShown() {
		if err := e.messenger.Delete(sess.ChatID, id); err != nil {
			e.logger.Debug("failed to delete message",
				zap.Int64("chat_id", sess.ChatID),
				zap.Int("message_id", id),
				zap.Error(err),
			)
		}
	}

	id, err := e.messenger.Send(sess.ChatID, text, buttons)
	if err != nil {
		e.logger.Warn("failed to send prompt", zap.Int64("chat_id", sess.ChatID), zap.Error(err))
		return
	}
	sess.TrackMessage(id)
}

func navButtons() []Button {
	return []Button{
		{Label: "Назад", Data: cbBack},
		{Label: "Отмена", Data: cbCancel},
	}
}
