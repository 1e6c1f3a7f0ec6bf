// Package adapter contains the SQL dialects supported by sqlstore. An
// adapter owns everything that differs between backends: the driver and
// DSN, placeholder style, identifier quoting, paging syntax and the
// classification of driver errors.
package adapter

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"datastore"
)

// AdapterName identifies a registered adapter.
type AdapterName string

const (
	PostgreSQL AdapterName = "postgresql"
	MySQL      AdapterName = "mysql"
	SQLite     AdapterName = "sqlite"
)

// Adapter represents a SQL database adapter (PostgreSQL, MySQL, SQLite).
type Adapter interface {
	// Name returns the adapter's unique identifier.
	Name() AdapterName

	// DriverName is the database/sql driver the adapter opens.
	DriverName() string

	// BindType is the sqlx placeholder style of the driver.
	BindType() int

	// Connect establishes a connection to the database.
	Connect(ctx context.Context, config *datastore.Config) (*sqlx.DB, error)

	// ConnectionString builds the connection string from config.
	ConnectionString(config *datastore.Config) string

	// DefaultTxOptions are used for unit-of-work transactions.
	DefaultTxOptions() *sql.TxOptions

	// Dialect
	QuoteIdentifier(identifier string) string
	SupportsReturning() bool
	SupportsILike() bool
	// RegexOperator returns the infix regex operator, or false when the
	// dialect has none.
	RegexOperator() (string, bool)
	// LimitOffset renders the paging window. Nil means unbounded.
	LimitOffset(limit, offset *int) string

	// Error classification
	IsUniqueConstraintViolation(err error) bool
	IsForeignKeyViolation(err error) bool
	IsConnectionError(err error) bool
}

// ClassifyError maps a driver error to a datastore.ConstraintError when the
// adapter recognises it as a constraint violation. Other errors are
// returned unchanged.
func ClassifyError(a Adapter, table string, err error) error {
	switch {
	case err == nil:
		return nil
	case a.IsUniqueConstraintViolation(err):
		return datastore.NewConstraintError(err, datastore.UniqueConstraint, table)
	case a.IsForeignKeyViolation(err):
		return datastore.NewConstraintError(err, datastore.ForeignKeyConstraint, table)
	}
	return err
}

var (
	_ Adapter = (*PostgreSQLAdapter)(nil)
	_ Adapter = (*MySQLAdapter)(nil)
	_ Adapter = (*SQLiteAdapter)(nil)
)
