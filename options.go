package datastore

import (
	"time"
)

// Option mutates a Config.
type Option func(*Config)

// Database connection options

// WithConnection sets basic connection parameters for network-based backends.
func WithConnection(host string, port int, username, password, database string) Option {
	return func(c *Config) {
		c.Host = host
		c.Port = port
		c.Username = username
		c.Password = password
		c.Database = database
	}
}

// WithType selects the backend adapter (postgres, mysql, sqlite).
func WithType(kind string) Option {
	return func(c *Config) {
		c.Type = kind
	}
}

// WithHost sets the connection host.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort sets the connection port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithCredentials sets username and password.
func WithCredentials(username, password string) Option {
	return func(c *Config) {
		c.Username = username
		c.Password = password
	}
}

// WithDatabase sets the database name.
func WithDatabase(database string) Option {
	return func(c *Config) {
		c.Database = database
	}
}

// WithFilePath sets the SQLite database file.
func WithFilePath(path string) Option {
	return func(c *Config) {
		c.FilePath = path
	}
}

// WithPooling sizes the connection pool.
func WithPooling(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
		c.ConnMaxLifetime = maxLifetime
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(max int) Option {
	return func(c *Config) {
		c.MaxOpenConns = max
	}
}

// WithConnMaxIdleTime sets the maximum time a connection may sit idle.
func WithConnMaxIdleTime(idle time.Duration) Option {
	return func(c *Config) {
		c.ConnMaxIdleTime = idle
	}
}

// Timeout options

// WithTimeouts sets the connect timeout and the per-statement query timeout.
func WithTimeouts(connect, query time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = connect
		c.QueryTimeout = query
	}
}

// WithConnectTimeout sets the connection timeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ConnectTimeout = timeout
	}
}

// WithQueryTimeout bounds every statement a session issues. Zero disables
// the bound.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = timeout
	}
}

// Security options

// WithSSL sets the PostgreSQL sslmode.
func WithSSL(mode string) Option {
	return func(c *Config) {
		c.SSLMode = mode
	}
}

// WithSSLDisabled is WithSSL("disable").
func WithSSLDisabled() Option {
	return func(c *Config) {
		c.SSLMode = "disable"
	}
}

// WithSSLRequired is WithSSL("require").
func WithSSLRequired() Option {
	return func(c *Config) {
		c.SSLMode = "require"
	}
}

// Observability options

// WithMetrics toggles the Prometheus collectors of the SQL service.
func WithMetrics(enabled bool) Option {
	return func(c *Config) {
		c.EnableMetrics = enabled
	}
}

// WithMetricsEnabled enables metrics collection.
func WithMetricsEnabled() Option {
	return func(c *Config) {
		c.EnableMetrics = true
	}
}

// WithLogLevel sets the level used by NewLogger.
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// Custom options

// WithOption adds a driver parameter to the DSN.
func WithOption(key, value string) Option {
	return func(c *Config) {
		if c.Options == nil {
			c.Options = make(map[string]string)
		}
		c.Options[key] = value
	}
}

// WithOptions adds several driver parameters.
func WithOptions(options map[string]string) Option {
	return func(c *Config) {
		if c.Options == nil {
			c.Options = make(map[string]string)
		}
		for k, v := range options {
			c.Options[k] = v
		}
	}
}

// Backend-specific convenience functions

// PostgreSQLOptions returns common PostgreSQL configuration options.
func PostgreSQLOptions(database, username, password string, opts ...Option) []Option {
	base := []Option{
		WithType("postgres"),
		WithPort(5432),
		WithDatabase(database),
		WithCredentials(username, password),
		WithSSLDisabled(),
	}
	return append(base, opts...)
}

// MySQLOptions returns common MySQL configuration options.
func MySQLOptions(database, username, password string, opts ...Option) []Option {
	base := []Option{
		WithType("mysql"),
		WithPort(3306),
		WithDatabase(database),
		WithCredentials(username, password),
	}
	return append(base, opts...)
}

// SQLiteOptions returns common SQLite configuration options.
func SQLiteOptions(filePath string, opts ...Option) []Option {
	base := []Option{
		WithType("sqlite"),
		WithFilePath(filePath),
		WithMaxOpenConns(1), // one writer; also keeps :memory: on a single database
	}
	return append(base, opts...)
}

// InMemorySQLiteOptions returns options for a private in-memory SQLite
// database, mostly useful in tests.
func InMemorySQLiteOptions(opts ...Option) []Option {
	return SQLiteOptions(":memory:", opts...)
}

// NewConfig creates a new configuration with the given options.
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Apply applies multiple options to an existing configuration.
func (c *Config) Apply(opts ...Option) *Config {
	for _, opt := range opts {
		opt(c)
	}
	return c
}
