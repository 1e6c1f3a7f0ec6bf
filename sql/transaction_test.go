package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastore"
	"datastore/sql/adapter"
)

func newMockHandler(t *testing.T) (*TransactionHandler, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewTransactionHandler(sqlx.NewDb(mockDB, "sqlmock"), adapter.NewPostgreSQLAdapter()), mock
}

func TestWithTxCommits(t *testing.T) {
	h, mock := newMockHandler(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	var seen bool
	err := h.WithTx(context.Background(), func(ctx context.Context) error {
		_, seen = TransactionFromContext(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	h, mock := newMockHandler(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	cause := errors.New("write failed")
	err := h.WithTx(context.Background(), func(context.Context) error { return cause })
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var txErr *datastore.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "rollback", txErr.Operation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxReportsRollbackFailure(t *testing.T) {
	h, mock := newMockHandler(t)
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	cause := errors.New("write failed")
	err := h.WithTx(context.Background(), func(context.Context) error { return cause })
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWithTxBeginAndCommitFailures(t *testing.T) {
	h, mock := newMockHandler(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
	err := h.WithTx(context.Background(), func(context.Context) error {
		t.Fatal("fn must not run without a transaction")
		return nil
	})
	var txErr *datastore.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "begin", txErr.Operation)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
	err = h.WithTx(context.Background(), func(context.Context) error { return nil })
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "commit", txErr.Operation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxReusesAmbientTransaction(t *testing.T) {
	h, mock := newMockHandler(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := h.WithTx(context.Background(), func(outer context.Context) error {
		outerTx, _ := TransactionFromContext(outer)
		// the nested call must not begin a second transaction
		return h.WithTx(outer, func(inner context.Context) error {
			innerTx, ok := TransactionFromContext(inner)
			assert.True(t, ok)
			assert.Same(t, outerTx, innerTx)
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionFromContext(t *testing.T) {
	_, ok := TransactionFromContext(context.Background())
	assert.False(t, ok)

	_, ok = TransactionFromContext(ContextWithTransaction(context.Background(), nil))
	assert.False(t, ok, "a nil transaction is not carried")
}

func TestUnitOfWorkJoinsAmbientTransaction(t *testing.T) {
	s, mock := newMockSession(t, adapter.NewSQLiteAdapter())
	require.NoError(t, NewWriteRepository[tag](s).Add(&tag{Code: "new", Label: "New"}))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tags" ("code", "label") VALUES (?, ?)`).
		WithArgs("new", "New").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := s.db.Beginx()
	require.NoError(t, err)
	n, err := NewUnitOfWork(s).Commit(ContextWithTransaction(context.Background(), tx))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
