package sched

import (
	"context"
	"time"

	ucport "listing-assistant/internal/domain/ports/usecase"
	"listing-assistant/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Gate decides whether this replica runs a sweep. ran=false means skip.
type Gate interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) (ran bool, err error)
}

// ExpiryWorker periodically marks lapsed ACTIVE subscriptions EXPIRED.
// Entitlement already ignores lapsed periods; this keeps stored status honest.
type ExpiryWorker struct {
	interval time.Duration
	expirer  ucport.SubscriptionExpirer
	gate     Gate
	log      *zerolog.Logger
}

// NewExpiryWorker builds the worker. gate may be nil to always run.
func NewExpiryWorker(interval time.Duration, expirer ucport.SubscriptionExpirer, gate Gate, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		expirer:  expirer,
		gate:     gate,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep, bounded by half the interval.
func (w *ExpiryWorker) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.interval/2)
	defer cancel()

	sweep := func(ctx context.Context) error {
		n, err := w.expirer.ExpireStale(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			metrics.IncSubscriptionsExpired(n)
			w.log.Info().Int("count", n).Msg("expired subscriptions finished")
		}
		return nil
	}

	if w.gate == nil {
		if err := sweep(runCtx); err != nil {
			w.log.Error().Err(err).Msg("expiry worker error")
		}
		return
	}
	ran, err := w.gate.Do(runCtx, sweep)
	switch {
	case !ran:
		w.log.Debug().Err(err).Msg("sweep skipped, another replica holds the lock")
	case err != nil:
		w.log.Error().Err(err).Msg("expiry worker error")
	}
}
