package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres, *sqlx.Tx for SQLite).
// Repositories must accept a nil Tx and run outside a transaction.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a database transaction and passes the
// handle to repositories through tx.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
