package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*usageRepo)(nil)

type usageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.UsageRecord) error {
	meta := []byte("{}")
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return domain.ErrInvalidArgument
		}
		meta = b
	}

	const q = `
INSERT INTO usage_records (id, user_id, action, credits_used, credit_id, is_trial, metadata, created_at)
VALUES ($1, $2, $3::usage_action, $4, $5, $6, $7::jsonb, $8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.UserID, string(rec.Action), rec.CreditsUsed, rec.CreditID, rec.IsTrial, string(meta), rec.CreatedAt,
	)
	return mapErr("insert usage record", err)
}

func (r *usageRepo) Aggregate(ctx context.Context, tx repository.Tx, userID string) (model.UsageAggregate, error) {
	const q = `SELECT COALESCE(SUM(credits_used), 0), COUNT(*) FROM usage_records WHERE user_id = $1;`
	row, err := queryRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return model.UsageAggregate{}, err
	}
	var agg model.UsageAggregate
	if err := row.Scan(&agg.TotalCreditsUsed, &agg.TotalRecords); err != nil {
		return model.UsageAggregate{}, mapErr("aggregate usage", err)
	}
	return agg, nil
}

func (r *usageRepo) CountByAction(ctx context.Context, tx repository.Tx, userID string, action model.UsageAction) (int64, error) {
	const q = `SELECT COUNT(*) FROM usage_records WHERE user_id = $1 AND action = $2::usage_action;`
	row, err := queryRow(ctx, r.pool, tx, q, userID, string(action))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, mapErr("count usage", err)
	}
	return n, nil
}
