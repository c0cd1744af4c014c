//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newMemCounter() *memCounter {
	return &memCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *memCounter) Ping(ctx context.Context) error { return nil }
func (m *memCounter) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (m *memCounter) Get(ctx context.Context, key string) (string, error) { return "", Nil }
func (m *memCounter) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}
func (m *memCounter) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = expiration
	return nil
}
func (m *memCounter) Del(ctx context.Context, keys ...string) error { return nil }
func (m *memCounter) Close() error                                  { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit within a window", func(t *testing.T) {
		c := newMemCounter()
		rl := NewRateLimiter(c, 3, time.Minute)
		key := UserActionKey("user_1", "remove-bg")

		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, "hit %d should pass", i+1)
		}
		ok, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, time.Minute, c.expires[key], "window set on first hit")
	})

	t.Run("keys are independent per user and action", func(t *testing.T) {
		rl := NewRateLimiter(newMemCounter(), 1, time.Minute)
		ok1, _ := rl.Allow(ctx, UserActionKey("a", "x"))
		ok2, _ := rl.Allow(ctx, UserActionKey("a", "y"))
		ok3, _ := rl.Allow(ctx, UserActionKey("b", "x"))
		assert.True(t, ok1 && ok2 && ok3)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		c := newMemCounter()
		c.incrErr = errors.New("conn refused")
		_, err := NewRateLimiter(c, 1, time.Minute).Allow(ctx, "k")
		assert.Error(t, err)
	})
}
