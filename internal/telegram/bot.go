// Package telegram адаптирует Telegram Bot API к интерфейсам движка
// разговора: доставка сообщений, кнопки и цикл обновлений.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/uzpay/cashdesk-bot/internal/conversation"
	"github.com/uzpay/cashdesk-bot/internal/worker"
	"go.uber.org/zap"
)

// Bot связывает Telegram-обновления с движком разговора. Порядок
// обработки внутри одного чата обеспечивает диспетчер: обновление не
// обрабатывается здесь, а ставится в полосу своего чата.
type Bot struct {
	api        *tgbotapi.BotAPI
	engine     *conversation.Engine
	dispatcher *worker.Dispatcher
	logger     *zap.Logger
}

// New создает нового бота. Движок разговора подключается отдельно
// через SetEngine: боту он нужен как обработчик, а движку бот - как
// Messenger.
func New(token string, dispatcher *worker.Dispatcher, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create bot: %w", err)
	}

	return &Bot{
		api:        api,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// SetEngine подключает движок разговора. Вызывается один раз до Run.
func (b *Bot) SetEngine(engine *conversation.Engine) {
	b.engine = engine
}

// Run читает обновления до отмены контекста
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	updateConfig := tgbotapi.UpdateConfig{Timeout: 60}
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.route(update)
		}
	}
}

// route раскладывает обновление в полосу его чата
func (b *Bot) route(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		chatID := cb.Message.Chat.ID
		data := cb.Data
		callbackID := cb.ID
		b.dispatcher.Dispatch(chatID, func(ctx context.Context) {
			b.answerCallback(callbackID)
			b.engine.HandleCallback(ctx, chatID, data)
		})
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		chatID := msg.Chat.ID
		command := msg.Command()
		b.dispatcher.Dispatch(chatID, func(ctx context.Context) {
			b.engine.HandleCommand(ctx, chatID, command)
		})
	case update.Message != nil && update.Message.Text != "":
		msg := update.Message
		chatID := msg.Chat.ID
		text := msg.Text
		b.dispatcher.Dispatch(chatID, func(ctx context.Context) {
			b.engine.HandleText(ctx, chatID, text)
		})
	}
}

// answerCallback подтверждает нажатие кнопки, чтобы клиент убрал спиннер
func (b *Bot) answerCallback(callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}
}

// Send реализует conversation.Messenger
func (b *Bot) Send(chatID int64, text string, buttons []conversation.Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = keyboard(buttons)
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram: failed to send message to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// Delete реализует удаление приглашений conversation.Messenger
func (b *Bot) Delete(chatID int64, messageID int) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err != nil {
		// Сообщение могло быть удалено пользователем
		if strings.Contains(err.Error(), "message to delete not found") {
			return nil
		}
		return fmt.Errorf("telegram: failed to delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// Notify реализует service.Notifier: уведомление о судьбе заявки
func (b *Bot) Notify(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return fmt.Errorf("telegram: failed to notify chat %d: %w", chatID, err)
	}
	return nil
}

// keyboard строит inline-клавиатуру по одной кнопке в ряд
func keyboard(buttons []conversation.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
