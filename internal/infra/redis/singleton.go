package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// Singleton runs a job on at most one replica at a time, using a redsync
// mutex that expires after ttl if the holder dies.
type Singleton struct {
	rs   *redsync.Redsync
	name string
	ttl  time.Duration
}

func NewSingleton(c *redClient, name string, ttl time.Duration) *Singleton {
	return &Singleton{
		rs:   redsync.New(goredis.NewPool(c.cli)),
		name: "lock:" + name,
		ttl:  ttl,
	}
}

// Do runs fn if the lock could be taken without waiting. ran is false when
// another replica holds it; err then carries the reason for logging.
func (s *Singleton) Do(ctx context.Context, fn func(ctx context.Context) error) (ran bool, err error) {
	m := s.rs.NewMutex(s.name, redsync.WithExpiry(s.ttl), redsync.WithTries(1))
	if err := m.TryLockContext(ctx); err != nil {
		return false, fmt.Errorf("acquire %s: %w", s.name, err)
	}
	defer func() {
		_, _ = m.UnlockContext(context.WithoutCancel(ctx))
	}()
	return true, fn(ctx)
}
