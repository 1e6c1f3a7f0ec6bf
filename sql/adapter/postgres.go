package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"datastore"
)

// PostgreSQL error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgConnectionClass     = "08"
)

// PostgreSQLAdapter implements the Adapter interface for PostgreSQL.
type PostgreSQLAdapter struct {
	*BaseSQLAdapter
}

// NewPostgreSQLAdapter creates a new PostgreSQL adapter.
func NewPostgreSQLAdapter() *PostgreSQLAdapter {
	return &PostgreSQLAdapter{
		BaseSQLAdapter: NewBaseSQLAdapter("postgres", PostgreSQL),
	}
}

// Connect establishes a connection to PostgreSQL.
func (a *PostgreSQLAdapter) Connect(ctx context.Context, config *datastore.Config) (*sqlx.DB, error) {
	return a.connect(ctx, config, a.ConnectionString(config))
}

// ConnectionString constructs a PostgreSQL key/value connection string.
func (a *PostgreSQLAdapter) ConnectionString(config *datastore.Config) string {
	var parts []string

	if config.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", config.Host))
	}
	if config.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", config.Port))
	}
	if config.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", config.Database))
	}
	if config.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", config.Username))
	}
	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quotePQValue(config.Password)))
	}

	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))

	if config.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(config.ConnectTimeout.Seconds())))
	}

	for _, key := range sortedOptionKeys(config.Options) {
		parts = append(parts, fmt.Sprintf("%s=%s", key, config.Options[key]))
	}

	return strings.Join(parts, " ")
}

// quotePQValue quotes values containing spaces or quotes.
func quotePQValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// SupportsReturning indicates PostgreSQL supports the RETURNING clause.
func (a *PostgreSQLAdapter) SupportsReturning() bool {
	return true
}

// SupportsILike indicates PostgreSQL has a native ILIKE operator.
func (a *PostgreSQLAdapter) SupportsILike() bool {
	return true
}

// RegexOperator returns the POSIX regex match operator.
func (a *PostgreSQLAdapter) RegexOperator() (string, bool) {
	return "~", true
}

func (a *PostgreSQLAdapter) IsUniqueConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return a.BaseSQLAdapter.IsUniqueConstraintViolation(err)
}

func (a *PostgreSQLAdapter) IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgForeignKeyViolation
	}
	return a.BaseSQLAdapter.IsForeignKeyViolation(err)
}

func (a *PostgreSQLAdapter) IsConnectionError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pgConnectionClass
	}
	return a.BaseSQLAdapter.IsConnectionError(err)
}
