package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/infra/i18n"
	"typing-premium-payments/internal/infra/metrics"
)

var _ adapter.Notifier = (*Notifier)(nil)

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes admin notifications to the configured Telegram chats.
// End users are reached through their in-app inbox only.
type Notifier struct {
	bot        sender
	adminChats []int64
	tr         *i18n.Translator
	log        *zerolog.Logger
}

func NewNotifier(token string, adminChats []int64, tr *i18n.Translator, logger *zerolog.Logger) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(adminChats) == 0 {
		return nil, errors.New("no admin chats configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newNotifier(bot, adminChats, tr, logger), nil
}

func newNotifier(bot sender, adminChats []int64, tr *i18n.Translator, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &Notifier{bot: bot, adminChats: adminChats, tr: tr, log: &l}
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Deliver(ctx context.Context, msg adapter.NotifyMessage) error {
	if !msg.Admin {
		return nil
	}

	text := formatMessage(n.tr, msg)
	var errs []error
	for _, chatID := range n.adminChats {
		// Support early cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m := tgbotapi.NewMessage(chatID, text)
		m.DisableWebPagePreview = true
		if _, err := n.bot.Send(m); err != nil {
			metrics.IncNotificationSent(n.Name(), "error")
			n.log.Warn().Err(err).Int64("chat_id", chatID).Str("kind", msg.Kind).Msg("telegram send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		metrics.IncNotificationSent(n.Name(), "ok")
	}
	return errors.Join(errs...)
}

// formatMessage appends the order line and, when the locale has one, an
// operator hint for the message kind.
func formatMessage(tr *i18n.Translator, msg adapter.NotifyMessage) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Text != "" {
		b.WriteString("\n\n")
		b.WriteString(msg.Text)
	}
	if msg.OrderID != "" {
		b.WriteString("\n\n")
		if tr != nil {
			b.WriteString(tr.T("order_line", msg.OrderID))
		} else {
			b.WriteString("Order: " + msg.OrderID)
		}
	}
	if tr != nil {
		if hint, ok := tr.Lookup("hint." + msg.Kind); ok {
			b.WriteString("\n")
			b.WriteString(hint)
		}
	}
	return b.String()
}
