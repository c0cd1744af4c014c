package repository

import (
	"context"
	"time"

	"listing-assistant/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.UserSubscription) error

	// FindActiveByUser returns the record with status ACTIVE and period end >= now,
	// with its plan joined. ErrNotFound when none.
	FindActiveByUser(ctx context.Context, tx Tx, userID string, now time.Time) (*model.UserSubscription, error)

	// FindLatestByUser returns the most recently updated record regardless of status.
	FindLatestByUser(ctx context.Context, tx Tx, userID string) (*model.UserSubscription, error)

	// ExpireStale flips ACTIVE records whose period ended before now to EXPIRED.
	ExpireStale(ctx context.Context, tx Tx, now time.Time) (int, error)

	// ExpireStaleByUser is ExpireStale limited to one user.
	ExpireStaleByUser(ctx context.Context, tx Tx, userID string, now time.Time) (int, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
