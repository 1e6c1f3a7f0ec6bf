package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"datastore"
)

// BaseSQLAdapter provides common functionality for all SQL adapters.
// It holds no connection state: the pool it opens belongs to the caller.
type BaseSQLAdapter struct {
	driverName string
	name       AdapterName
}

// NewBaseSQLAdapter creates a new base SQL adapter.
func NewBaseSQLAdapter(driverName string, name AdapterName) *BaseSQLAdapter {
	return &BaseSQLAdapter{
		driverName: driverName,
		name:       name,
	}
}

// Name returns the adapter name.
func (a *BaseSQLAdapter) Name() AdapterName {
	return a.name
}

// DriverName returns the database/sql driver name.
func (a *BaseSQLAdapter) DriverName() string {
	return a.driverName
}

// BindType returns the sqlx bind type of the driver.
func (a *BaseSQLAdapter) BindType() int {
	return sqlx.BindType(a.driverName)
}

// connect opens, configures and pings a pool for connectionString.
func (a *BaseSQLAdapter) connect(ctx context.Context, config *datastore.Config, connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.Open(a.driverName, connectionString)
	if err != nil {
		// the driver is not registered
		return nil, datastore.WrapDriverError(err, a.driverName, "open")
	}

	a.configureConnectionPool(db, config)

	pingCtx := ctx
	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, datastore.WrapConnectionError(err, "ping", a.driverName, config.Host)
	}

	return db, nil
}

func (a *BaseSQLAdapter) configureConnectionPool(db *sqlx.DB, config *datastore.Config) {
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}
}

// DefaultTxOptions returns default transaction options.
func (a *BaseSQLAdapter) DefaultTxOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
		ReadOnly:  false,
	}
}

// QuoteIdentifier quotes an identifier with ANSI double quotes.
func (a *BaseSQLAdapter) QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (a *BaseSQLAdapter) SupportsReturning() bool { return false }

func (a *BaseSQLAdapter) SupportsILike() bool { return false }

func (a *BaseSQLAdapter) RegexOperator() (string, bool) { return "", false }

// LimitOffset renders LIMIT and OFFSET independently.
func (a *BaseSQLAdapter) LimitOffset(limit, offset *int) string {
	var b strings.Builder
	if limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *offset)
	}
	return b.String()
}

// IsConnectionError matches errors that mean the connection is unusable.
func (a *BaseSQLAdapter) IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	return containsAny(err.Error(),
		"connection refused",
		"connection reset",
		"connection closed",
		"network is unreachable",
		"broken pipe",
	)
}

// IsUniqueConstraintViolation falls back to message matching for drivers
// without typed errors.
func (a *BaseSQLAdapter) IsUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"unique constraint",
		"duplicate key",
		"duplicate entry",
	)
}

// IsForeignKeyViolation falls back to message matching for drivers without
// typed errors.
func (a *BaseSQLAdapter) IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"foreign key constraint",
		"violates foreign key",
	)
}

func containsAny(s string, patterns ...string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// sortedOptionKeys returns the option keys in a stable order.
func sortedOptionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
