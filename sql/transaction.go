package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"datastore"
	"datastore/sql/adapter"
)

type txContextKey struct{}

// TransactionFromContext extracts an *sqlx.Tx from context when present.
func TransactionFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	v := ctx.Value(txContextKey{})
	if v == nil {
		return nil, false
	}
	tx, ok := v.(*sqlx.Tx)
	return tx, ok && tx != nil
}

// ContextWithTransaction returns ctx carrying tx.
func ContextWithTransaction(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TransactionHandler runs functions inside a database transaction.
type TransactionHandler struct {
	db      *sqlx.DB
	adapter adapter.Adapter
}

func NewTransactionHandler(db *sqlx.DB, adpt adapter.Adapter) *TransactionHandler {
	return &TransactionHandler{db: db, adapter: adpt}
}

// WithTx runs fn in a transaction opened with the adapter's default
// options. The transaction is committed when fn returns nil and rolled
// back otherwise. A transaction already carried by ctx is reused.
func (t *TransactionHandler) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := TransactionFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, t.adapter.DefaultTxOptions())
	if err != nil {
		return datastore.WrapTransactionError(err, "begin")
	}

	if err := fn(ContextWithTransaction(ctx, tx)); err != nil {
		// a cancelled context has already rolled the transaction back
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return datastore.WrapTransactionError(
				errors.Wrapf(err, "rollback failed: %v", rbErr), "rollback")
		}
		return datastore.WrapTransactionError(err, "rollback")
	}

	if err := tx.Commit(); err != nil {
		return datastore.WrapTransactionError(err, "commit")
	}
	return nil
}
