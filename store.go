// Package datastore provides a generic data-access layer with read and write
// repositories, composable query specifications and a unit of work that
// commits or rolls back staged changes.
//
// Core abstractions live at the root level; backend-specific implementations
// live in sub-packages (see datastore/sql).
package datastore

import (
	"context"
)

// Entity is a persistable record type mapped to one table.
type Entity interface {
	// TableName returns the table the entity is stored in
	TableName() string
}

// KeyNamer is implemented by entities whose primary key column is not "id".
type KeyNamer interface {
	KeyColumn() string
}

// DefaultKeyColumn is the primary key column used when an entity does not
// implement KeyNamer.
const DefaultKeyColumn = "id"

// KeyColumnOf returns the primary key column of ent.
func KeyColumnOf(ent Entity) string {
	if kn, ok := ent.(KeyNamer); ok {
		if col := kn.KeyColumn(); col != "" {
			return col
		}
	}
	return DefaultKeyColumn
}

// Service defines the common interface for storage services.
type Service interface {
	// Connect establishes the connection to the storage backend
	Connect(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error

	// Stats returns backend-specific statistics
	Stats() interface{}
}

// EntityState is the change-tracking state of a staged entity.
type EntityState int

const (
	// Detached entities are not tracked.
	Detached EntityState = iota
	// Unchanged entities match the store as far as the tracker knows.
	Unchanged
	// Added entities are inserted on commit.
	Added
	// Modified entities have every column overwritten on commit.
	Modified
	// Deleted entities are removed on commit.
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Detached:
		return "detached"
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// IsPending reports whether an entry in this state is written on commit.
func (s EntityState) IsPending() bool {
	return s == Added || s == Modified || s == Deleted
}
