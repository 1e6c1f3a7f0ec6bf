// Package sqlstore is the relational backend of datastore. A Service owns
// the connection pool; each Session created from it is one persistence
// context whose repositories and unit of work share a change tracker.
package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"datastore"
	"datastore/sql/adapter"
)

// Service wraps a SQL adapter and its connection pool.
type Service struct {
	adapter adapter.Adapter
	db      *sqlx.DB
	config  *datastore.Config
	logger  *zap.Logger
	metrics *Metrics
}

// Ensure Service implements the service interface.
var _ datastore.Service = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger handed to every session.
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegisterer registers the store metrics on reg when the configuration
// enables metrics. The default is prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) ServiceOption {
	return func(s *Service) {
		if !s.config.EnableMetrics {
			return
		}
		m, err := NewMetrics(reg)
		if err != nil {
			s.logger.Warn("metrics registration failed", zap.Error(err))
			return
		}
		s.metrics = m
	}
}

// NewService creates a new SQL service with the given adapter.
func NewService(adpt adapter.Adapter, config *datastore.Config, opts ...ServiceOption) *Service {
	s := &Service{
		adapter: adpt,
		config:  config,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.EnableMetrics && s.metrics == nil {
		WithRegisterer(prometheus.DefaultRegisterer)(s)
	}
	return s
}

// Connect establishes the database connection.
func (s *Service) Connect(ctx context.Context) error {
	db, err := s.adapter.Connect(ctx, s.config)
	if err != nil {
		return err
	}
	db.Mapper = mapper
	s.db = db

	s.logger.Debug("connected",
		zap.String("adapter", string(s.adapter.Name())),
		zap.String("host", s.config.Host),
		zap.String("database", s.config.Database))
	return nil
}

// NewSession opens a persistence context over the service's pool. The
// service logger, metrics and query timeout apply unless opts override
// them.
func (s *Service) NewSession(opts ...SessionOption) *Session {
	base := []SessionOption{
		WithLogger(s.logger),
		WithMetrics(s.metrics),
		WithQueryTimeout(s.config.QueryTimeout),
	}
	return NewSession(s.db, s.adapter, append(base, opts...)...)
}

// DB returns the underlying connection pool.
func (s *Service) DB() *sqlx.DB {
	return s.db
}

// Adapter returns the underlying adapter.
func (s *Service) Adapter() adapter.Adapter {
	return s.adapter
}

// Metrics returns the service metrics, nil when disabled.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Close closes the database connection.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return datastore.WrapConnectionError(err, "close", string(s.adapter.Name()), s.config.Host)
	}
	return nil
}

// Stats returns database connection statistics.
func (s *Service) Stats() interface{} {
	if s.db != nil {
		return s.db.Stats()
	}
	return sql.DBStats{}
}

// ExecuteSQL executes raw SQL (table creation, fixtures and the like).
// Placeholders are written as ? and rebound for the driver.
func (s *Service) ExecuteSQL(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, sqlx.Rebind(s.adapter.BindType(), query), args...)
	if err != nil {
		return datastore.WrapQueryError(err, "execute_sql", "", query, args)
	}
	return nil
}

// Open creates and connects a new SQL service using the specified adapter.
func Open(ctx context.Context, adpt adapter.Adapter, config *datastore.Config, opts ...ServiceOption) (*Service, error) {
	service := NewService(adpt, config, opts...)

	if err := service.Connect(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

// OpenWithName creates and connects a new SQL service using the adapter
// registered under name.
func OpenWithName(ctx context.Context, name string, config *datastore.Config, opts ...ServiceOption) (*Service, error) {
	adpt, err := adapter.Get(adapter.AdapterName(name))
	if err != nil {
		return nil, err
	}

	return Open(ctx, adpt, config, opts...)
}

// OpenConfig validates config and opens a service for config.Type.
func OpenConfig(ctx context.Context, config *datastore.Config, opts ...ServiceOption) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return OpenWithName(ctx, config.Type, config, opts...)
}
