package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"typing-premium-payments/internal/infra/metrics"
)

// OrderSweeper is the slice of the order use case the expiry worker drives.
type OrderSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpiryWorker periodically expires stale pending and submitted orders,
// returning their sequences to the pool.
type ExpiryWorker struct {
	interval time.Duration
	orders   OrderSweeper
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, orders OrderSweeper, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		orders:   orders,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.orders.SweepExpired(ctx)
	if err != nil {
		metrics.IncSweepRun("orders", "error")
		w.log.Error().Err(err).Msg("expiry worker error")
		return
	}
	metrics.IncSweepRun("orders", "ok")
	if n > 0 {
		metrics.AddOrdersExpired(n)
		metrics.IncOrderTransition("expired")
		w.log.Info().Int("count", n).Msg("stale orders expired")
	}
}
