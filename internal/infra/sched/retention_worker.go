package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"typing-premium-payments/internal/infra/metrics"
)

type OrderPurger interface {
	PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error)
}

type NotificationPurger interface {
	PurgeRead(ctx context.Context, olderThan time.Duration) (int, error)
}

// RetentionWorker deletes old expired/failed orders and read notifications.
// Bank transactions are kept forever.
type RetentionWorker struct {
	interval       time.Duration
	orders         OrderPurger
	notifications  NotificationPurger
	orderRetention time.Duration
	notifRetention time.Duration
	log            *zerolog.Logger
}

func NewRetentionWorker(interval time.Duration, orders OrderPurger, notifications NotificationPurger, orderRetention, notifRetention time.Duration, logger *zerolog.Logger) *RetentionWorker {
	compLog := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval:       interval,
		orders:         orders,
		notifications:  notifications,
		orderRetention: orderRetention,
		notifRetention: notifRetention,
		log:            &compLog,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *RetentionWorker) purge(ctx context.Context) {
	status := "ok"
	orders, err := w.orders.PurgeTerminal(ctx, w.orderRetention)
	if err != nil {
		status = "error"
		w.log.Error().Err(err).Msg("order purge failed")
	}
	notifs, err := w.notifications.PurgeRead(ctx, w.notifRetention)
	if err != nil {
		status = "error"
		w.log.Error().Err(err).Msg("notification purge failed")
	}
	metrics.IncSweepRun("retention", status)
	if orders > 0 || notifs > 0 {
		w.log.Info().Int("orders", orders).Int("notifications", notifs).Msg("retention purge done")
	}
}
