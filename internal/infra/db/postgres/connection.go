package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listing-assistant/internal/config"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

var ErrConnect = errors.New("postgres: failed to open connection")

// Connect returns a live pool, retrying with a linear backoff so the
// service can come up alongside the database.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		pool, err := pgxpool.ConnectConfig(ctx, pcfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Int("of", attempts).Msg("postgres not ready")

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnect, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrConnect, lastErr)
}

// PoolStats adapts a pool to the scheduler's stats source.
type PoolStats struct {
	Pool *pgxpool.Pool
}

func (p PoolStats) Snapshot() (total, idle, inUse int32) {
	s := p.Pool.Stat()
	return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
}
