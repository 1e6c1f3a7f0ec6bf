package datastore

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to these where one applies.
var (
	ErrDriverNotFound = errors.New("driver not found")

	ErrInvalidQuery   = errors.New("invalid query")
	ErrUnknownField   = errors.New("unknown field")
	ErrUnknownInclude = errors.New("unknown include path")

	// change tracking and persistence
	ErrAlreadyTracked       = errors.New("another instance with the same key is already tracked")
	ErrMissingKey           = errors.New("entity key is not set")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")
	ErrUniqueConstraint     = errors.New("unique constraint violation")
	ErrForeignKeyConstraint = errors.New("foreign key constraint violation")

	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrNotSupported     = errors.New("operation not supported")
)

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	Operation string
	Driver    string
	Host      string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s with %s driver at %s: %v",
		e.Operation, e.Driver, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DriverError represents driver-related errors.
type DriverError struct {
	Driver    string
	Operation string
	Err       error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error with %s during %s: %v",
		e.Driver, e.Operation, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// TransactionError represents transaction-related errors.
type TransactionError struct {
	Operation string
	Err       error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction error during %s: %v", e.Operation, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// QueryError represents query execution errors.
type QueryError struct {
	Operation string
	Table     string
	Query     string
	Args      []any
	Err       error
}

func (e *QueryError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("query error during %s on table %s: %v",
			e.Operation, e.Table, e.Err)
	}
	return fmt.Sprintf("query error during %s: %v", e.Operation, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ConstraintKind classifies constraint violations.
type ConstraintKind string

const (
	UniqueConstraint     ConstraintKind = "unique"
	ForeignKeyConstraint ConstraintKind = "foreign_key"
)

// ConstraintError is a named constraint violation raised by the store.
type ConstraintError struct {
	Kind  ConstraintKind
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint violation on table %s: %v", e.Kind, e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the violation kind.
func (e *ConstraintError) Is(target error) bool {
	switch e.Kind {
	case UniqueConstraint:
		return target == ErrUniqueConstraint
	case ForeignKeyConstraint:
		return target == ErrForeignKeyConstraint
	}
	return false
}

// ConcurrencyError reports an update or delete that affected no row.
type ConcurrencyError struct {
	Table     string
	Key       any
	Operation string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict during %s on table %s: no row with key %v", e.Operation, e.Table, e.Key)
}

func (e *ConcurrencyError) Unwrap() error {
	return ErrConcurrencyConflict
}

// ValidationError represents validation errors.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ConfigError represents configuration errors.
type ConfigError struct {
	Field   string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// RepositoryError represents repository operation errors.
type RepositoryError struct {
	EntityName string
	Operation  string
	Context    map[string]any
	Err        error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository error in %s.%s: %v", e.EntityName, e.Operation, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Constructor functions for custom errors

// NewDriverError creates a new driver error.
func NewDriverError(err error, driver, operation string) *DriverError {
	return &DriverError{
		Driver:    driver,
		Operation: operation,
		Err:       err,
	}
}

// NewConstraintError creates a new constraint error.
func NewConstraintError(err error, kind ConstraintKind, table string) *ConstraintError {
	return &ConstraintError{
		Kind:  kind,
		Table: table,
		Err:   err,
	}
}

// NewConcurrencyError creates a new concurrency error.
func NewConcurrencyError(table string, key any, operation string) *ConcurrencyError {
	return &ConcurrencyError{
		Table:     table,
		Key:       key,
		Operation: operation,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorForField creates a new validation error for a specific field.
func NewValidationErrorForField(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewConfigError creates a new config error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{
		Message: message,
	}
}

// NewConfigErrorForField creates a new config error for a specific field.
func NewConfigErrorForField(field string, value any, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrapper functions for adding context to errors

// WrapConnectionError wraps an error as a connection error.
func WrapConnectionError(err error, operation, driver, host string) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Operation: operation, Driver: driver, Host: host, Err: err}
}

// WrapDriverError wraps an error as a driver error.
func WrapDriverError(err error, driver, operation string) error {
	if err == nil {
		return nil
	}
	return NewDriverError(err, driver, operation)
}

// WrapTransactionError wraps an error as a transaction error.
func WrapTransactionError(err error, operation string) error {
	if err == nil {
		return nil
	}
	return &TransactionError{Operation: operation, Err: err}
}

// WrapQueryError wraps an error as a query error.
func WrapQueryError(err error, operation, table, query string, args []any) error {
	if err == nil {
		return nil
	}
	return &QueryError{Operation: operation, Table: table, Query: query, Args: args, Err: err}
}

// WrapRepositoryError wraps an error with repository context.
func WrapRepositoryError(err error, entityName, operation string, context map[string]any) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{
		EntityName: entityName,
		Operation:  operation,
		Context:    context,
		Err:        err,
	}
}

// Error checking functions

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsDriverError checks if an error is a driver error.
func IsDriverError(err error) bool {
	var driverErr *DriverError
	return errors.As(err, &driverErr)
}

// IsTransactionError checks if an error is a transaction error.
func IsTransactionError(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}

// IsQueryError checks if an error is a query error.
func IsQueryError(err error) bool {
	var queryErr *QueryError
	return errors.As(err, &queryErr)
}

// IsConstraintError checks if an error is a constraint violation.
func IsConstraintError(err error) bool {
	var constraintErr *ConstraintError
	return errors.As(err, &constraintErr)
}

// IsConcurrencyError checks if an error is a concurrency conflict.
func IsConcurrencyError(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsConfigError checks if an error is a config error.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// NewValidationErrorFromMessages joins several messages into one validation error.
func NewValidationErrorFromMessages(messages []string) *ValidationError {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{
		Message: "validation failed: " + strings.Join(messages, "; "),
	}
}
