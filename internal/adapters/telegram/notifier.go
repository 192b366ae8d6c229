package telegram

import (
	"DeskRelay/internal/core/ports"
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// tgNotifier implements the NotifierPort.
type tgNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewNotifier creates a Telegram notifier bound to a single chat.
func NewNotifier(api *tgbotapi.BotAPI, chatID int64, baseLogger *zerolog.Logger) ports.NotifierPort {
	log := baseLogger.With().Str("component", "tg_notifier").Logger()
	return &tgNotifier{api: api, chatID: chatID, log: log}
}

// Notify posts the text to the configured chat.
func (n *tgNotifier) Notify(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)

	if _, err := n.api.Send(msg); err != nil {
		n.log.Error().Err(err).Int64("chat_id", n.chatID).Msg("Failed to send notification")
		return err
	}
	return nil
}
