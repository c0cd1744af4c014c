package repository

import (
	"context"
	"time"

	"listing-assistant/internal/domain/model"
)

// CreditRepository is the port for the credit ledger.
type CreditRepository interface {
	Insert(ctx context.Context, tx Tx, lot *model.CreditLot) error

	// ListUsableByUser returns active, non-expired lots ordered by expiry
	// (nulls last) then type rank. forUpdate row-locks them for tx.
	ListUsableByUser(ctx context.Context, tx Tx, userID string, now time.Time, forUpdate bool) ([]*model.CreditLot, error)

	// IncrementUsed adds delta to used; it must fail rather than push used past amount.
	IncrementUsed(ctx context.Context, tx Tx, lotID string, delta int64, now time.Time) error

	CountByUserAndType(ctx context.Context, tx Tx, userID string, t model.CreditType) (int, error)
	Deactivate(ctx context.Context, tx Tx, lotID string, now time.Time) error
}
