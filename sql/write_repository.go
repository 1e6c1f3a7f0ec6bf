package sqlstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"datastore"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

// WriteRepository stages inserts, updates and deletes of one entity type in
// the session's change tracker. Only RemoveByID touches the store, to look
// up an untracked key; everything else waits for UnitOfWork.Commit.
type WriteRepository[T datastore.Entity] struct {
	repositoryBase[T]
}

// NewWriteRepository creates a write repository over the session.
func NewWriteRepository[T datastore.Entity](s *Session) *WriteRepository[T] {
	return &WriteRepository[T]{repositoryBase: newRepositoryBase[T](s)}
}

// Add stages ent for insertion after checking its validate tags. An unset
// string or UUID key is generated here; an unset integer key is assigned by
// the store on commit.
func (r *WriteRepository[T]) Add(ent *T) error {
	if err := r.ValidateFields(ent); err != nil {
		return err
	}
	return r.add(reflect.ValueOf(ent))
}

func (r *WriteRepository[T]) add(ptr reflect.Value) error {
	tracker := r.session.tracker
	if e, ok := tracker.lookupPtr(ptr); ok {
		if e.state == datastore.Deleted {
			// still stored; overwrite instead of inserting twice
			e.state = datastore.Modified
		}
		return nil
	}

	generated := r.meta.keyIsZero(ptr.Elem())
	if err := r.assignKey(ptr.Elem()); err != nil {
		return err
	}
	if _, err := tracker.attach(ptr, r.meta, datastore.Added); err != nil {
		if generated {
			r.clearKey(ptr.Elem())
		}
		return err
	}
	return nil
}

func (r *WriteRepository[T]) clearKey(v reflect.Value) {
	field := v.FieldByIndex(r.meta.key.index)
	field.Set(reflect.Zero(field.Type()))
}

func (r *WriteRepository[T]) assignKey(v reflect.Value) error {
	if !r.meta.keyIsZero(v) {
		return nil
	}
	field := v.FieldByIndex(r.meta.key.index)
	switch {
	case field.Kind() == reflect.String:
		field.SetString(uuid.NewString())
	case field.Type() == uuidType:
		field.Set(reflect.ValueOf(uuid.New()))
	case r.meta.keyGenerated():
		// assigned by the store
	default:
		return fmt.Errorf("%w: %s", datastore.ErrMissingKey, r.EntityName())
	}
	return nil
}

// AddRange stages every entity for insertion. Either all are staged or, on
// error, none of them: states and generated keys are put back as they were.
func (r *WriteRepository[T]) AddRange(ents []*T) error {
	for i, ent := range ents {
		if err := r.ValidateFields(ent); err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
	}

	type undo struct {
		ptr      reflect.Value
		entry    *entry
		prior    datastore.EntityState
		attached bool
		keyless  bool
	}

	tracker := r.session.tracker
	done := make([]undo, 0, len(ents))
	for i, ent := range ents {
		ptr := reflect.ValueOf(ent)
		u := undo{ptr: ptr, keyless: r.meta.keyIsZero(ptr.Elem())}
		if e, ok := tracker.lookupPtr(ptr); ok {
			u.entry, u.prior = e, e.state
		} else {
			u.attached = true
		}

		if err := r.add(ptr); err != nil {
			for j := len(done) - 1; j >= 0; j-- {
				d := done[j]
				if !d.attached {
					d.entry.state = d.prior
					continue
				}
				if e, ok := tracker.lookupPtr(d.ptr); ok {
					tracker.detach(e)
				}
				if d.keyless {
					r.clearKey(d.ptr.Elem())
				}
			}
			return fmt.Errorf("entity %d: %w", i, err)
		}
		done = append(done, u)
	}
	return nil
}

// Update stages ent so that every column is overwritten on commit. An
// entity staged for insertion stays an insertion.
func (r *WriteRepository[T]) Update(ent *T) error {
	if err := r.ValidateFields(ent); err != nil {
		return err
	}
	ptr := reflect.ValueOf(ent)

	if e, ok := r.session.tracker.lookupPtr(ptr); ok {
		if e.state != datastore.Added {
			e.state = datastore.Modified
		}
		return nil
	}

	if r.meta.keyIsZero(ptr.Elem()) {
		return fmt.Errorf("%w: cannot update %s without a key", datastore.ErrMissingKey, r.EntityName())
	}
	_, err := r.session.tracker.attach(ptr, r.meta, datastore.Modified)
	return err
}

// Remove stages ent for deletion. Removing an entity staged for insertion
// simply forgets it.
func (r *WriteRepository[T]) Remove(ent *T) error {
	if err := r.ValidateEntity(ent); err != nil {
		return err
	}
	ptr := reflect.ValueOf(ent)

	if e, ok := r.session.tracker.lookupPtr(ptr); ok {
		r.markDeleted(e)
		return nil
	}

	if r.meta.keyIsZero(ptr.Elem()) {
		return fmt.Errorf("%w: cannot remove %s without a key", datastore.ErrMissingKey, r.EntityName())
	}
	_, err := r.session.tracker.attach(ptr, r.meta, datastore.Deleted)
	return err
}

// RemoveByID stages the entity with the given key for deletion, looking in
// the session first and the store second. An unknown key is ignored.
func (r *WriteRepository[T]) RemoveByID(ctx context.Context, id any) error {
	if err := r.ValidateID(id); err != nil {
		return err
	}

	tracker := r.session.tracker
	if e, ok := tracker.lookupKey(r.meta, id); ok {
		r.markDeleted(e)
		return nil
	}

	ent, err := newQuery[T](r.session).Where(datastore.Eq(r.meta.key.name, id)).First(ctx)
	if err != nil {
		return r.HandleGetError(err, "remove_by_id", id)
	}
	if ent == nil {
		return nil
	}
	_, err = tracker.attach(reflect.ValueOf(ent), r.meta, datastore.Deleted)
	return err
}

func (r *WriteRepository[T]) markDeleted(e *entry) {
	if e.state == datastore.Added {
		r.session.tracker.detach(e)
		return
	}
	e.state = datastore.Deleted
}
