package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"datastore"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry    = 1062
	mysqlRowIsReferenced   = 1451
	mysqlNoReferencedRow   = 1452
	mysqlServerGone        = 2006
	mysqlServerLost        = 2013
	mysqlUnboundedRowCount = "18446744073709551615"
)

// MySQLAdapter implements the Adapter interface for MySQL.
type MySQLAdapter struct {
	*BaseSQLAdapter
}

// NewMySQLAdapter creates a new MySQL adapter.
func NewMySQLAdapter() *MySQLAdapter {
	return &MySQLAdapter{
		BaseSQLAdapter: NewBaseSQLAdapter("mysql", MySQL),
	}
}

// Connect establishes a connection to MySQL.
func (a *MySQLAdapter) Connect(ctx context.Context, config *datastore.Config) (*sqlx.DB, error) {
	return a.connect(ctx, config, a.ConnectionString(config))
}

// ConnectionString constructs a MySQL DSN. Times are parsed into
// time.Time, the charset defaults to utf8mb4 and affected-row counts
// report matched rows so an unchanged UPDATE is not mistaken for a
// missing one.
func (a *MySQLAdapter) ConnectionString(config *datastore.Config) string {
	cfg := mysql.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.DBName = config.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true

	if config.Host != "" || config.Port > 0 {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		port := config.Port
		if port == 0 {
			port = 3306
		}
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	}
	if config.ConnectTimeout > 0 {
		cfg.Timeout = config.ConnectTimeout
	}

	charset := "utf8mb4"
	for _, key := range sortedOptionKeys(config.Options) {
		if strings.EqualFold(key, "charset") {
			charset = config.Options[key]
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = config.Options[key]
	}

	// the driver keeps charset out of Params, which it sends as SET statements
	dsn := cfg.FormatDSN()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "charset=" + charset
}

// DefaultTxOptions returns MySQL-specific transaction options.
func (a *MySQLAdapter) DefaultTxOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead, // MySQL default
		ReadOnly:  false,
	}
}

// QuoteIdentifier quotes a MySQL identifier.
func (a *MySQLAdapter) QuoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

// RegexOperator returns the MySQL REGEXP operator.
func (a *MySQLAdapter) RegexOperator() (string, bool) {
	return "REGEXP", true
}

// LimitOffset renders the window. MySQL has no OFFSET without LIMIT, so an
// unbounded limit uses the largest row count.
func (a *MySQLAdapter) LimitOffset(limit, offset *int) string {
	switch {
	case limit == nil && offset == nil:
		return ""
	case limit == nil:
		return fmt.Sprintf(" LIMIT %s OFFSET %d", mysqlUnboundedRowCount, *offset)
	}
	return a.BaseSQLAdapter.LimitOffset(limit, offset)
}

func (a *MySQLAdapter) IsUniqueConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return a.BaseSQLAdapter.IsUniqueConstraintViolation(err)
}

func (a *MySQLAdapter) IsForeignKeyViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlRowIsReferenced || myErr.Number == mysqlNoReferencedRow
	}
	return a.BaseSQLAdapter.IsForeignKeyViolation(err)
}

func (a *MySQLAdapter) IsConnectionError(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlServerGone || myErr.Number == mysqlServerLost
	}
	return a.BaseSQLAdapter.IsConnectionError(err)
}
