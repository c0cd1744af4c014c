package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionSelect = `
SELECT s.id, s.user_id, s.plan_id, s.status::text, s.current_period_start, s.current_period_end, s.created_at, s.updated_at,
       p.id, p.name, p.credits_included, p.period_days, p.price_cents, p.active, p.created_at
  FROM user_subscriptions s
  JOIN subscription_plans p ON p.id = s.plan_id`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	const q = `
INSERT INTO user_subscriptions (id, user_id, plan_id, status, current_period_start, current_period_end, created_at, updated_at)
VALUES ($1, $2, $3, $4::subscription_status, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  plan_id = EXCLUDED.plan_id,
  status = EXCLUDED.status,
  current_period_start = EXCLUDED.current_period_start,
  current_period_end = EXCLUDED.current_period_end,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, string(s.Status), s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CreatedAt, s.UpdatedAt,
	)
	return mapErr("save subscription", err)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.UserSubscription, error) {
	const q = subscriptionSelect + `
 WHERE s.user_id = $1 AND s.status = 'ACTIVE' AND s.current_period_end >= $2
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID, now)
}

func (r *subscriptionRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	const q = subscriptionSelect + `
 WHERE s.user_id = $1
 ORDER BY s.updated_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ExpireStale(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `
UPDATE user_subscriptions
   SET status = 'EXPIRED', updated_at = $1
 WHERE status = 'ACTIVE' AND current_period_end < $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, mapErr("expire subscriptions", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *subscriptionRepo) ExpireStaleByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) (int, error) {
	const q = `
UPDATE user_subscriptions
   SET status = 'EXPIRED', updated_at = $2
 WHERE user_id = $1 AND status = 'ACTIVE' AND current_period_end < $2;`
	ct, err := execSQL(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return 0, mapErr("expire user subscriptions", err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status::text, COUNT(*) FROM user_subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("count subscriptions", err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.SubscriptionStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.UserSubscription, error) {
	row, err := queryRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func scanSub(row pgx.Row) (*model.UserSubscription, error) {
	var (
		s      model.UserSubscription
		p      model.SubscriptionPlan
		status string
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
		&p.ID, &p.Name, &p.CreditsIncluded, &p.PeriodDays, &p.PriceCents, &p.Active, &p.CreatedAt,
	); err != nil {
		return nil, mapErr("scan subscription", err)
	}
	s.Status = model.SubscriptionStatus(status)
	s.Plan = &p
	return &s, nil
}
