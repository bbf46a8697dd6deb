package spanner

import (
	"context"

	"cloud.google.com/go/spanner"
)

// ReadTransaction is the read surface shared by read-write and read-only transactions.
type ReadTransaction interface {
	ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error)
	Read(ctx context.Context, table string, keys spanner.KeySet, columns []string) *spanner.RowIterator
	Query(ctx context.Context, statement spanner.Statement) *spanner.RowIterator
}

type readWriteTxKey struct{}

type readTxKey struct{}

// withReadWriteTx embeds a Spanner ReadWriteTransaction in the context.
// The transaction is also registered as the read transaction of the scope.
func withReadWriteTx(ctx context.Context, tx *spanner.ReadWriteTransaction) (context.Context, error) {
	if _, ok := ReadWriteTxFromContext(ctx); ok {
		return nil, ErrNestedTransaction
	}
	ctx = context.WithValue(ctx, readWriteTxKey{}, tx)
	return context.WithValue(ctx, readTxKey{}, ReadTransaction(tx)), nil
}

// ReadWriteTxFromContext extracts a Spanner ReadWriteTransaction from context.
// Returns (nil, false) if no transaction is present.
func ReadWriteTxFromContext(ctx context.Context) (*spanner.ReadWriteTransaction, bool) {
	tx, ok := ctx.Value(readWriteTxKey{}).(*spanner.ReadWriteTransaction)
	return tx, ok
}

// ReadTransactionFromContext extracts whichever transaction the current scope opened.
func ReadTransactionFromContext(ctx context.Context) (ReadTransaction, bool) {
	tx, ok := ctx.Value(readTxKey{}).(ReadTransaction)
	return tx, ok
}
