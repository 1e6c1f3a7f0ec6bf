package sqlstore

import (
	"fmt"
	"reflect"

	"datastore"
)

// repositoryBase provides what the read and write repositories of one
// entity type share: the session, the mapping and error context.
type repositoryBase[T datastore.Entity] struct {
	session *Session
	meta    *entityMeta
	err     error // mapping error, reported by every operation
}

func newRepositoryBase[T datastore.Entity](s *Session) repositoryBase[T] {
	meta, err := metaFor[T]()
	return repositoryBase[T]{session: s, meta: meta, err: err}
}

// EntityName returns the Go name of the entity type.
func (r *repositoryBase[T]) EntityName() string {
	if r.meta == nil {
		var zero T
		return reflect.TypeOf(zero).Name()
	}
	return r.meta.name
}

// TableName returns the table the entity is stored in.
func (r *repositoryBase[T]) TableName() string {
	var zero T
	return zero.TableName()
}

// Session returns the session the repository stages into.
func (r *repositoryBase[T]) Session() *Session {
	return r.session
}

// ValidateEntity rejects nil entities.
func (r *repositoryBase[T]) ValidateEntity(ent *T) error {
	if r.err != nil {
		return r.err
	}
	if ent == nil {
		return datastore.NewValidationError(fmt.Sprintf("%s entity cannot be nil", r.EntityName()))
	}
	return nil
}

// ValidateFields rejects entities whose validate tags fail.
func (r *repositoryBase[T]) ValidateFields(ent *T) error {
	if err := r.ValidateEntity(ent); err != nil {
		return err
	}
	return datastore.ValidateFields(ent)
}

// ValidateID rejects nil keys.
func (r *repositoryBase[T]) ValidateID(id any) error {
	if r.err != nil {
		return r.err
	}
	if id == nil {
		return datastore.NewValidationErrorForField(r.meta.key.name, id, "entity ID cannot be nil")
	}
	return nil
}

// Error handling helpers

// HandleGetError wraps get operation errors with context.
func (r *repositoryBase[T]) HandleGetError(err error, operation string, id any) error {
	if err == nil {
		return nil
	}
	return datastore.WrapRepositoryError(err, r.EntityName(), operation, map[string]any{"id": id})
}

// HandleQueryError wraps query operation errors with context.
func (r *repositoryBase[T]) HandleQueryError(err error, operation string, context map[string]any) error {
	if err == nil {
		return nil
	}
	return datastore.WrapRepositoryError(err, r.EntityName(), operation, context)
}
