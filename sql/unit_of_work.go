package sqlstore

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"datastore"
	"datastore/sql/adapter"
)

// UnitOfWork commits or discards everything staged in its session.
type UnitOfWork struct {
	session *Session
	handler *TransactionHandler
}

var _ datastore.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates the unit of work of the session.
func NewUnitOfWork(s *Session) *UnitOfWork {
	return &UnitOfWork{
		session: s,
		handler: NewTransactionHandler(s.db, s.adapter),
	}
}

type generatedKey struct {
	entry *entry
	id    int64
}

// written is the outcome of one entry's statement. skipped entries issued
// no statement.
type written struct {
	id        int64
	generated bool
	skipped   bool
}

// Commit writes every pending entry in tracking order inside one
// transaction and returns the number of entries written. Any failure rolls
// the transaction back and leaves the staged state exactly as it was.
func (u *UnitOfWork) Commit(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tracker := u.session.tracker
	tracker.DetectChanges()

	pending := tracker.pending()
	if len(pending) == 0 {
		return 0, nil
	}

	start := time.Now()
	var (
		keys  []generatedKey
		count int
	)
	err := u.handler.WithTx(ctx, func(txCtx context.Context) error {
		for _, e := range pending {
			if err := txCtx.Err(); err != nil {
				return err
			}
			res, err := u.write(txCtx, e)
			if err != nil {
				return err
			}
			if res.skipped {
				continue
			}
			count++
			if res.generated {
				keys = append(keys, generatedKey{entry: e, id: res.id})
			}
		}
		return nil
	})
	u.session.observe("commit", "", start, err)
	if err != nil {
		u.session.logger.Warn("commit failed",
			zap.Int("entries", len(pending)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return 0, err
	}

	for _, k := range keys {
		if err := k.entry.meta.setKey(k.entry.value(), k.id); err != nil {
			return count, err
		}
	}
	for _, e := range pending {
		tracker.accept(e)
	}

	u.session.logger.Debug("commit succeeded",
		zap.Int("entries", count),
		zap.Duration("elapsed", time.Since(start)))
	return count, nil
}

// write issues the statement of one entry. For inserts with a key assigned
// by the store it reports that key.
func (u *UnitOfWork) write(ctx context.Context, e *entry) (written, error) {
	s := u.session
	meta := e.meta
	compiler := s.compiler(meta)
	byKey := datastore.Eq(meta.key.name, e.key())

	var (
		m         datastore.Mutation
		operation string
		generated bool
	)
	switch e.state {
	case datastore.Added:
		generated = meta.keyGenerated() && !e.hasKey()
		ins := datastore.NewInsert(meta.values(e.value(), generated))
		if generated {
			ins = ins.WithReturning(meta.key.name)
		}
		m, operation = ins, "insert"
	case datastore.Modified:
		set := meta.values(e.value(), true)
		if len(set) == 0 {
			return written{skipped: true}, nil
		}
		m, operation = datastore.NewUpdate(set, byKey), "update"
	case datastore.Deleted:
		m, operation = datastore.NewDelete(byKey), "delete"
	default:
		return written{skipped: true}, nil
	}

	compiled, err := compiler.CompileMutation(m)
	if err != nil {
		return written{}, err
	}
	query := s.rebind(compiled.SQL)

	stmtCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()

	if generated && s.adapter.SupportsReturning() {
		var id int64
		err := s.executor(ctx).QueryRowxContext(stmtCtx, query, compiled.Args...).Scan(&id)
		s.observe(operation, meta.table, start, err)
		if err != nil {
			return written{}, u.statementError(err, operation, meta.table)
		}
		return written{id: id, generated: true}, nil
	}

	res, err := s.executor(ctx).ExecContext(stmtCtx, query, compiled.Args...)
	s.observe(operation, meta.table, start, err)
	if err != nil {
		return written{}, u.statementError(err, operation, meta.table)
	}

	if generated {
		id, err := res.LastInsertId()
		if err != nil {
			return written{}, errors.Wrapf(err, "%s into %s: read generated key", operation, meta.table)
		}
		return written{id: id, generated: true}, nil
	}

	if e.state == datastore.Modified || e.state == datastore.Deleted {
		rows, err := res.RowsAffected()
		if err != nil {
			return written{}, errors.Wrapf(err, "%s %s: rows affected", operation, meta.table)
		}
		if rows == 0 {
			return written{}, datastore.NewConcurrencyError(meta.table, e.key(), operation)
		}
	}
	return written{}, nil
}

func (u *UnitOfWork) statementError(err error, operation, table string) error {
	return errors.Wrapf(adapter.ClassifyError(u.session.adapter, table, err), "%s %s", operation, table)
}

// Rollback discards staged changes. Entities staged for insertion are
// forgotten; modified and deleted ones are reloaded from the store, or
// forgotten when their row no longer exists.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	tracker := u.session.tracker
	tracker.DetectChanges()

	start := time.Now()
	var reverted int
	entries := append([]*entry(nil), tracker.entries...)
	for _, e := range entries {
		switch e.state {
		case datastore.Added:
			tracker.detach(e)
			reverted++
		case datastore.Modified, datastore.Deleted:
			if err := u.reload(ctx, e); err != nil {
				u.session.observe("rollback", "", start, err)
				return err
			}
			reverted++
		}
	}
	u.session.observe("rollback", "", start, nil)

	u.session.logger.Debug("rollback succeeded",
		zap.Int("entries", reverted),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// reload overwrites the entry's columns with the stored row.
func (u *UnitOfWork) reload(ctx context.Context, e *entry) error {
	s := u.session
	compiled, err := s.compiler(e.meta).Select(selection{where: datastore.Eq(e.meta.key.name, e.key())})
	if err != nil {
		return err
	}

	// scratch value: a failed read leaves the entity untouched
	dest := reflect.New(e.meta.typ)
	if err := s.getContext(ctx, dest.Interface(), compiled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			u.session.tracker.detach(e)
			return nil
		}
		return datastore.WrapQueryError(err, "reload", e.meta.table, compiled.SQL, compiled.Args)
	}

	for _, col := range e.meta.columns {
		e.value().FieldByIndex(col.index).Set(dest.Elem().FieldByIndex(col.index))
	}
	e.state = datastore.Unchanged
	e.original = e.meta.snapshot(e.value())
	return nil
}
