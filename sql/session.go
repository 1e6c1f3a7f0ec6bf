package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"datastore/sql/adapter"
)

// Session is the persistence context shared by the repositories and the
// unit of work of one logical operation. It owns a change tracker; reads
// and writes issued through repositories built on the same Session see the
// same staged state.
//
// A Session is not safe for concurrent use. Use one Session per request or
// job; sessions never share tracked state.
type Session struct {
	db           *sqlx.DB
	adapter      adapter.Adapter
	tracker      *ChangeTracker
	logger       *zap.Logger
	metrics      *Metrics
	queryTimeout time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger. The default discards everything.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation counts and latencies on m.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithQueryTimeout bounds every statement the session issues.
func WithQueryTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		s.queryTimeout = timeout
	}
}

// NewSession creates a session over db using the dialect of adpt.
func NewSession(db *sqlx.DB, adpt adapter.Adapter, opts ...SessionOption) *Session {
	db.Mapper = mapper
	s := &Session{
		db:      db,
		adapter: adpt,
		tracker: newChangeTracker(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChangeTracker returns the session's change tracker.
func (s *Session) ChangeTracker() *ChangeTracker {
	return s.tracker
}

// Adapter returns the session's dialect adapter.
func (s *Session) Adapter() adapter.Adapter {
	return s.adapter
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

type executor interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// executor returns the transaction carried by ctx, or the pool.
func (s *Session) executor(ctx context.Context) executor {
	if tx, ok := TransactionFromContext(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

// rebind converts ? placeholders to the dialect's bind style.
func (s *Session) rebind(query string) string {
	return sqlx.Rebind(s.adapter.BindType(), query)
}

func (s *Session) compiler(meta *entityMeta) *SQLCompiler {
	return NewSQLCompiler(s.adapter, meta)
}

func (s *Session) selectContext(ctx context.Context, dest any, c *CompiledSQL) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return sqlx.SelectContext(ctx, s.executor(ctx), dest, s.rebind(c.SQL), c.Args...)
}

func (s *Session) getContext(ctx context.Context, dest any, c *CompiledSQL) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return sqlx.GetContext(ctx, s.executor(ctx), dest, s.rebind(c.SQL), c.Args...)
}

func (s *Session) observe(operation, table string, start time.Time, err error) {
	s.metrics.Observe(operation, table, start, err)
}
