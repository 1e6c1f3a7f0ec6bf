package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"datastore"
)

const sqliteMemory = ":memory:"

// SQLiteAdapter implements the Adapter interface for SQLite.
type SQLiteAdapter struct {
	*BaseSQLAdapter
}

// NewSQLiteAdapter creates a new SQLite adapter.
func NewSQLiteAdapter() *SQLiteAdapter {
	return &SQLiteAdapter{
		BaseSQLAdapter: NewBaseSQLAdapter("sqlite3", SQLite),
	}
}

// Connect establishes a connection to SQLite. An in-memory database lives
// only as long as its connection, so the pool is pinned to one connection
// that is never recycled.
func (a *SQLiteAdapter) Connect(ctx context.Context, config *datastore.Config) (*sqlx.DB, error) {
	cfg := *config
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 1
	}
	if isMemoryPath(cfg.FilePath) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		cfg.ConnMaxIdleTime = 0
	}

	return a.connect(ctx, &cfg, a.ConnectionString(&cfg))
}

// ConnectionString constructs a SQLite DSN with foreign keys enforced on
// every connection.
func (a *SQLiteAdapter) ConnectionString(config *datastore.Config) string {
	dbPath := config.FilePath
	if dbPath == "" {
		dbPath = sqliteMemory
	} else if !filepath.IsAbs(dbPath) && !strings.HasPrefix(dbPath, ":") && !strings.HasPrefix(dbPath, "file:") {
		dbPath = filepath.Clean(dbPath)
	}

	params := []string{"_foreign_keys=1"}
	for _, key := range sortedOptionKeys(config.Options) {
		params = append(params, fmt.Sprintf("%s=%s", key, config.Options[key]))
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(params, "&")
}

func isMemoryPath(path string) bool {
	return path == "" || path == sqliteMemory || strings.Contains(path, "mode=memory")
}

// DefaultTxOptions returns default transaction options for SQLite.
func (a *SQLiteAdapter) DefaultTxOptions() *sql.TxOptions {
	return &sql.TxOptions{
		Isolation: sql.LevelSerializable, // SQLite default
		ReadOnly:  false,
	}
}

// SupportsReturning reports false; generated keys are read through
// LastInsertId.
func (a *SQLiteAdapter) SupportsReturning() bool {
	return false
}

// LimitOffset renders the window. SQLite needs a LIMIT before OFFSET and
// treats a negative limit as unbounded.
func (a *SQLiteAdapter) LimitOffset(limit, offset *int) string {
	switch {
	case limit == nil && offset == nil:
		return ""
	case limit == nil:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", *offset)
	}
	return a.BaseSQLAdapter.LimitOffset(limit, offset)
}

// IsUniqueConstraintViolation checks if an error is a unique or primary key
// constraint violation.
func (a *SQLiteAdapter) IsUniqueConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return a.BaseSQLAdapter.IsUniqueConstraintViolation(err)
}

// IsForeignKeyViolation checks if an error is a foreign key violation.
func (a *SQLiteAdapter) IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return a.BaseSQLAdapter.IsForeignKeyViolation(err)
}

// IsConnectionError checks if an error is a connection-related error.
func (a *SQLiteAdapter) IsConnectionError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return true
		}
		return false
	}
	return a.BaseSQLAdapter.IsConnectionError(err)
}
