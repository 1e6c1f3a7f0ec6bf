package datastore

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config contains connection and behaviour settings for a store backend.
type Config struct {
	// Basic connection info
	Type     string `mapstructure:"type" validate:"required,oneof=postgres postgresql mysql sqlite sqlite3"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	FilePath string `mapstructure:"file_path"` // SQLite database file, ":memory:" for in-memory
	SSLMode  string `mapstructure:"ssl_mode"`

	// Connection pooling
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"gte=0"`

	// Timeouts
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gte=0"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout" validate:"gte=0"`

	// Backend-specific options, appended to the DSN
	Options map[string]string `mapstructure:"options"`

	// Observability
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	LogLevel      string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            0, // Backend-specific default
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnectTimeout:  30 * time.Second,
		QueryTimeout:    30 * time.Second,
		Options:         make(map[string]string),
		LogLevel:        "info",
	}
}

var validate = validator.New()

// Validate checks the configuration for missing or out-of-range values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			messages := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				messages = append(messages, formatFieldError(fe))
			}
			return NewConfigError(strings.Join(messages, "; "))
		}
		return NewConfigError(err.Error())
	}

	switch c.Type {
	case "sqlite", "sqlite3":
		if c.FilePath == "" {
			return NewConfigErrorForField("file_path", c.FilePath, "is required for sqlite")
		}
	default:
		if c.Database == "" {
			return NewConfigErrorForField("database", c.Database, "is required")
		}
	}
	return nil
}

// ValidateFields checks the `validate` struct tags of ent, a pointer to an
// entity. Entities without tags always pass.
func ValidateFields(ent any) error {
	err := validate.Struct(ent)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationError(err.Error())
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatFieldError(fe))
	}
	return NewValidationErrorFromMessages(messages)
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// LoadConfig reads configuration from the file at path (optional) and from
// DATASTORE_* environment variables, then validates it. Environment values
// take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("max_open_conns", defaults.MaxOpenConns)
	v.SetDefault("max_idle_conns", defaults.MaxIdleConns)
	v.SetDefault("conn_max_lifetime", defaults.ConnMaxLifetime)
	v.SetDefault("conn_max_idle_time", defaults.ConnMaxIdleTime)
	v.SetDefault("connect_timeout", defaults.ConnectTimeout)
	v.SetDefault("query_timeout", defaults.QueryTimeout)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("DATASTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{
		"type", "host", "port", "username", "password", "database", "file_path",
		"ssl_mode", "enable_metrics",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, NewConfigErrorForField(key, nil, err.Error())
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewConfigError(fmt.Sprintf("failed to read config file: %v", err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewConfigError(fmt.Sprintf("failed to unmarshal config: %v", err))
	}
	if cfg.Options == nil {
		cfg.Options = make(map[string]string)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewLogger builds a production zap logger at the given level. An empty
// level means info.
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, NewConfigErrorForField("log_level", level, err.Error())
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
