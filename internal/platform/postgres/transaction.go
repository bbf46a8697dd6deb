package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rai/storefront-triggers/modules/shared/transaction"
)

// ErrNestedTransaction is returned when Execute is called inside an active scope.
var ErrNestedTransaction = errors.New("nested transaction detected")

// Querier is the statement surface shared by the pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// TxFromContext extracts the pgx transaction opened by TransactionScope.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// QuerierFromContext returns the active transaction, or the pool when none is open.
func QuerierFromContext(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return pool
}

// TransactionScope runs use cases inside a read-committed pgx transaction.
// Counter updates are single-statement increments, so row locks alone keep them
// commutative; no serializable retry loop is needed.
type TransactionScope struct {
	pool *pgxpool.Pool
}

func NewTransactionScope(pool *pgxpool.Pool) *TransactionScope {
	return &TransactionScope{pool: pool}
}

// Execute commits when fn returns nil and rolls back otherwise.
func (s *TransactionScope) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return ErrNestedTransaction
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Compile-time interface check.
var _ transaction.Scope = (*TransactionScope)(nil)
