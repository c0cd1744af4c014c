package repository

import (
	"context"

	"listing-assistant/internal/domain/model"
)

// UsageRepository is the port for the append-only usage log.
type UsageRepository interface {
	Insert(ctx context.Context, tx Tx, rec *model.UsageRecord) error
	Aggregate(ctx context.Context, tx Tx, userID string) (model.UsageAggregate, error)
	CountByAction(ctx context.Context, tx Tx, userID string, action model.UsageAction) (int64, error)
}
