package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"typing-premium-payments/internal/domain/ports/adapter"
	"typing-premium-payments/internal/infra/metrics"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs messages instead of sending them. Used when no bot token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (b *NoopNotifier) Name() string { return "noop" }

func (b *NoopNotifier) Deliver(ctx context.Context, msg adapter.NotifyMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().
		Bool("admin", msg.Admin).
		Str("recipient", msg.RecipientID).
		Str("kind", msg.Kind).
		Str("order_id", msg.OrderID).
		Msg(msg.Title)
	metrics.IncNotificationSent(b.Name(), "ok")
	return nil
}
