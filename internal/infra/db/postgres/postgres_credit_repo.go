package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/model"
	"listing-assistant/internal/domain/ports/repository"
)

var _ repository.CreditRepository = (*creditRepo)(nil)

type creditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *creditRepo {
	return &creditRepo{pool: pool}
}

const creditColumns = `id, user_id, amount, used, type::text, description, expires_at, is_active, subscription_id, process_id, created_at, updated_at`

func (r *creditRepo) Insert(ctx context.Context, tx repository.Tx, l *model.CreditLot) error {
	const q = `
INSERT INTO credits (id, user_id, amount, used, type, description, expires_at, is_active, subscription_id, process_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::credit_type, $6, $7, $8, $9, $10, $11, $12);`

	_, err := execSQL(ctx, r.pool, tx, q,
		l.ID, l.UserID, l.Amount, l.Used, string(l.Type), l.Description, l.ExpiresAt,
		l.IsActive, l.SubscriptionID, l.ProcessID, l.CreatedAt, l.UpdatedAt,
	)
	return mapErr("insert credit lot", err)
}

// ListUsableByUser orders lots the way consumption draws them. Ties on
// expiry fall back to the credit_type enum order, so the sort key must be the
// column itself and not the ::text projection.
func (r *creditRepo) ListUsableByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time, forUpdate bool) ([]*model.CreditLot, error) {
	q := `
SELECT ` + creditColumns + `
  FROM credits
 WHERE user_id = $1
   AND is_active
   AND (expires_at IS NULL OR expires_at >= $2)
 ORDER BY credits.expires_at ASC NULLS LAST, credits.type ASC, credits.created_at ASC, credits.id ASC`
	if forUpdate {
		if _, ok := tx.(pgx.Tx); !ok {
			return nil, domain.ErrInvalidExecContext
		}
		q += `
   FOR UPDATE`
	}

	rows, err := queryRows(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return nil, mapErr("list usable credits", err)
	}
	defer rows.Close()

	var out []*model.CreditLot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list usable credits", err)
	}
	return out, nil
}

// IncrementUsed refuses to push used past amount; zero affected rows means
// the lot is gone, inactive or short.
func (r *creditRepo) IncrementUsed(ctx context.Context, tx repository.Tx, lotID string, delta int64, now time.Time) error {
	if delta <= 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE credits
   SET used = used + $2, updated_at = $3
 WHERE id = $1 AND is_active AND used + $2 <= amount;`

	ct, err := execSQL(ctx, r.pool, tx, q, lotID, delta, now)
	if err != nil {
		return mapErr("increment credit usage", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: lot %s cannot absorb %d credits", domain.ErrOperationFailed, lotID, delta)
	}
	return nil
}

func (r *creditRepo) CountByUserAndType(ctx context.Context, tx repository.Tx, userID string, t model.CreditType) (int, error) {
	const q = `SELECT COUNT(*) FROM credits WHERE user_id = $1 AND type = $2::credit_type;`
	row, err := queryRow(ctx, r.pool, tx, q, userID, string(t))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapErr("count credits", err)
	}
	return n, nil
}

func (r *creditRepo) Deactivate(ctx context.Context, tx repository.Tx, lotID string, now time.Time) error {
	const q = `UPDATE credits SET is_active = FALSE, updated_at = $2 WHERE id = $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, lotID, now)
	if err != nil {
		return mapErr("deactivate credit lot", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanLot(row pgx.Row) (*model.CreditLot, error) {
	var (
		l     model.CreditLot
		ctype string
	)
	if err := row.Scan(
		&l.ID, &l.UserID, &l.Amount, &l.Used, &ctype, &l.Description, &l.ExpiresAt,
		&l.IsActive, &l.SubscriptionID, &l.ProcessID, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, mapErr("scan credit lot", err)
	}
	t, err := model.ParseCreditType(ctype)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	l.Type = t
	return &l, nil
}
