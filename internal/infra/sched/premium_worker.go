package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"typing-premium-payments/internal/infra/metrics"
)

type PremiumSweeper interface {
	SweepExpiredPremiums(ctx context.Context) (int, error)
}

// PremiumWorker demotes users whose premium grant has lapsed.
type PremiumWorker struct {
	interval time.Duration
	premium  PremiumSweeper
	log      *zerolog.Logger
}

func NewPremiumWorker(interval time.Duration, premium PremiumSweeper, logger *zerolog.Logger) *PremiumWorker {
	compLog := logger.With().Str("component", "PremiumWorker").Logger()
	return &PremiumWorker{
		interval: interval,
		premium:  premium,
		log:      &compLog,
	}
}

func (w *PremiumWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting premium worker")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping premium worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *PremiumWorker) runCheck(ctx context.Context) {
	n, err := w.premium.SweepExpiredPremiums(ctx)
	if err != nil {
		metrics.IncSweepRun("premium", "error")
		w.log.Error().Err(err).Msg("premium sweep failed")
		return
	}
	metrics.IncSweepRun("premium", "ok")
	metrics.AddPremiumDemoted(n)
	if n > 0 {
		w.log.Info().Int("count", n).Msg("lapsed premium grants demoted")
	}
}
