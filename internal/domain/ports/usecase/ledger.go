package usecase

import (
	"context"

	"listing-assistant/internal/domain/model"
)

// EntitlementResolver decides whether a user may start a paid action.
type EntitlementResolver interface {
	Resolve(ctx context.Context, userID string) model.Entitlement
}

// CreditConsumer debits usage against a user's ledger.
type CreditConsumer interface {
	Consume(ctx context.Context, userID string, action model.UsageAction, amount int64, meta map[string]any) (model.ConsumeResult, error)
}

// SubscriptionExpirer is what background workers need from the subscription registry.
type SubscriptionExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}
