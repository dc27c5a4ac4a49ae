// Package notify implements the outbound notification collaborator over
// Telegram. Delivery failures are reported to the caller, who treats them as
// non-fatal.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the slice of the Telegram bot API the notifier needs; tests
// substitute a fake.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	sender     Sender
	adminChats []int64
	log        zerolog.Logger
}

func NewTelegramNotifier(token string, adminChats []int64, debug bool, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = debug
	return NewTelegramNotifierWithSender(bot, adminChats, logger), nil
}

func NewTelegramNotifierWithSender(sender Sender, adminChats []int64, logger *zerolog.Logger) *TelegramNotifier {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "notify").Logger()
	}
	return &TelegramNotifier{sender: sender, adminChats: adminChats, log: log}
}

// Notify sends one message to a single chat. A zero chat id means the
// recipient has no Telegram binding; that is not an error.
func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, subject, body string) error {
	if chatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+body)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// NotifyAdmins fans the message out to every configured admin chat. Partial
// failures are logged per chat; the first error is returned so the caller
// can count it.
func (n *TelegramNotifier) NotifyAdmins(ctx context.Context, subject, body string) error {
	var firstErr error
	for _, chatID := range n.adminChats {
		if err := n.Notify(ctx, chatID, subject, body); err != nil {
			n.log.Error().Err(err).Int64("chat_id", chatID).Msg("admin notification failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NoopNotifier is wired when no bot token is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, chatID int64, subject, body string) error {
	return nil
}

func (NoopNotifier) NotifyAdmins(ctx context.Context, subject, body string) error {
	return nil
}
