//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func TestPlanRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()
	plan := &model.SubscriptionPlan{ID: "plan-123", Name: "Pro", PeriodDays: 30, PriceCents: 1700, Active: true}
	planJSON, _ := json.Marshal(plan)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(planJSON), nil
			},
		}
		innerRepoCalled := false
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
				innerRepoCalled = true
				return nil, nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, &log)
		result, err := decorator.FindByID(ctx, repository.NoTX, "plan-123")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerRepoCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.ID != "plan-123" || result.PriceCents != 1700 {
			t.Errorf("did not return the correct plan from cache: %+v", result)
		}
	})

	t.Run("FindByID should fill the cache on miss", func(t *testing.T) {
		var setKey string
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey = key
				return nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
				return plan, nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, &log)
		if _, err := decorator.FindByID(ctx, repository.NoTX, "plan-123"); err != nil {
			t.Fatal(err)
		}
		if setKey != "plan:plan-123" {
			t.Errorf("expected cache fill for plan:plan-123, got %q", setKey)
		}
	})

	t.Run("FindByID should bypass the cache inside a transaction", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be read inside a transaction")
				return "", nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
				return plan, nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, &log)
		if _, err := decorator.FindByID(ctx, "some-tx", "plan-123"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("FindByID should fall back to the database when redis fails", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", errors.New("redis down")
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
				return plan, nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, &log)
		got, err := decorator.FindByID(ctx, repository.NoTX, "plan-123")
		if err != nil || got.ID != "plan-123" {
			t.Fatalf("expected database result, got %+v / %v", got, err)
		}
	})

	t.Run("Save should invalidate the cache", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, plan *model.SubscriptionPlan) error {
				return nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, &log)
		if err := decorator.Save(ctx, repository.NoTX, plan); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := map[string]bool{"plan:plan-123": false, "plans:active": false}
		for _, k := range deletedKeys {
			want[k] = true
		}
		for k, ok := range want {
			if !ok {
				t.Errorf("expected key %q to be invalidated", k)
			}
		}
	})

	t.Run("ListActive should serve the cached list", func(t *testing.T) {
		listJSON, _ := json.Marshal([]*model.SubscriptionPlan{plan})
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "plans:active" {
					t.Errorf("unexpected key %q", key)
				}
				return string(listJSON), nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			ListActiveFunc: func(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
				t.Error("inner repository should not be called on a cache hit")
				return nil, nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, &log)
		plans, err := decorator.ListActive(ctx, repository.NoTX)
		if err != nil || len(plans) != 1 {
			t.Fatalf("unexpected result: %v / %v", plans, err)
		}
	})
}
