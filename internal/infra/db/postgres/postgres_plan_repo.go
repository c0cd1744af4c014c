package postgres

import (
	"context"

	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.SubscriptionPlan) error {
	const q = `
INSERT INTO subscription_plans (id, name, credits_included, period_days, price_cents, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
  SET name             = EXCLUDED.name,
      credits_included = EXCLUDED.credits_included,
      period_days      = EXCLUDED.period_days,
      price_cents      = EXCLUDED.price_cents,
      active           = EXCLUDED.active;`

	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, plan.CreditsIncluded, plan.PeriodDays, plan.PriceCents, plan.Active, plan.CreatedAt,
	)
	return mapErr("save plan", err)
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `
SELECT id, name, credits_included, period_days, price_cents, active, created_at
  FROM subscription_plans
 WHERE id = $1;`
	row, err := queryRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *PostgresPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	const q = `
SELECT id, name, credits_included, period_days, price_cents, active, created_at
  FROM subscription_plans
 WHERE active
 ORDER BY price_cents ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("list plans", err)
	}
	defer rows.Close()

	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list plans", err)
	}
	return out, nil
}

func scanPlan(row pgx.Row) (*model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	if err := row.Scan(&p.ID, &p.Name, &p.CreditsIncluded, &p.PeriodDays, &p.PriceCents, &p.Active, &p.CreatedAt); err != nil {
		return nil, mapErr("scan plan", err)
	}
	return &p, nil
}
