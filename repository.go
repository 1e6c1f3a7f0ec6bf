package datastore

import (
	"context"
)

// Query is a lazily evaluated, untracked query over entities of type T.
// Every builder method returns a new Query; nothing executes until one of
// the terminal methods is called.
type Query[T any] interface {
	Where(criteria Node) Query[T]
	Include(nav Navigation[T]) Query[T]
	IncludePath(path string) Query[T]
	OrderBy(field string) Query[T]
	OrderByDescending(field string) Query[T]
	Skip(n int) Query[T]
	Take(n int) Query[T]

	// List materializes the query
	List(ctx context.Context) ([]T, error)

	// First returns the first result, or nil when there is none
	First(ctx context.Context) (*T, error)

	// Count returns the number of results
	Count(ctx context.Context) (int64, error)

	// Any reports whether the query has at least one result
	Any(ctx context.Context) (bool, error)
}

// ReadRepository exposes read-only operations for one entity type. Results
// are detached copies; reads never stage anything for commit.
type ReadRepository[T any] interface {
	// GetByID returns the entity with the given key, or nil when absent.
	GetByID(ctx context.Context, id any) (*T, error)

	// Find returns a lazy query with spec applied.
	Find(spec Specification[T]) Query[T]

	// List materializes Find(spec).
	List(ctx context.Context, spec Specification[T]) ([]T, error)

	// Any reports whether at least one entity matches criteria.
	Any(ctx context.Context, criteria Node) (bool, error)

	// Count returns the number of entities matching criteria.
	Count(ctx context.Context, criteria Node) (int64, error)
}

// WriteRepository stages mutations for one entity type. Nothing is written
// until the owning UnitOfWork commits.
type WriteRepository[T any] interface {
	Add(entity *T) error
	AddRange(entities []*T) error
	Update(entity *T) error
	Remove(entity *T) error

	// RemoveByID stages the entity with the given key for deletion. A
	// missing key is not an error.
	RemoveByID(ctx context.Context, id any) error
}

// UnitOfWork commits or discards every change staged through the
// repositories sharing its session.
type UnitOfWork interface {
	// Commit writes all staged changes in one transaction and returns the
	// number of entries written.
	Commit(ctx context.Context) (int, error)

	// Rollback discards staged changes: added entities are forgotten,
	// modified and deleted ones are reloaded from the store.
	Rollback(ctx context.Context) error
}
