package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories accept NoTX for the non-transactional path.
type Tx interface{}

var NoTX Tx

// TransactionManager executes fn inside a single database transaction.
// If fn returns an error the transaction is rolled back, otherwise committed.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		lots, err := credits.ListUsableByUser(ctx, tx, userID, now, true)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// UserLocker serialises writers for one user for the lifetime of tx.
type UserLocker interface {
	LockUser(ctx context.Context, tx Tx, userID string) error
}
