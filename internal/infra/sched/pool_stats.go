package sched

import (
	"context"
	"time"

	"listing-assistant/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// StatsSource reports connection pool occupancy.
type StatsSource interface {
	Snapshot() (total, idle, inUse int32)
}

// PoolStatsReporter publishes pool occupancy to the db_pool_stats gauge.
type PoolStatsReporter struct {
	interval time.Duration
	src      StatsSource
	log      *zerolog.Logger
}

func NewPoolStatsReporter(interval time.Duration, src StatsSource, logger *zerolog.Logger) *PoolStatsReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	l := logger.With().Str("component", "PoolStatsReporter").Logger()
	return &PoolStatsReporter{interval: interval, src: src, log: &l}
}

func (r *PoolStatsReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.report()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *PoolStatsReporter) report() {
	total, idle, inUse := r.src.Snapshot()
	metrics.SetDBPoolStats(total, idle, inUse)
	if total > 0 && inUse == total {
		r.log.Warn().Int32("total", total).Msg("db pool saturated")
	}
}
