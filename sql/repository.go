package sqlstore

import (
	"context"

	"datastore"
)

// ReadRepository provides untracked reads of one entity type.
type ReadRepository[T datastore.Entity] struct {
	repositoryBase[T]
}

// NewReadRepository creates a read repository over the session.
func NewReadRepository[T datastore.Entity](s *Session) *ReadRepository[T] {
	return &ReadRepository[T]{repositoryBase: newRepositoryBase[T](s)}
}

// GetByID returns the entity with the given key, or nil when there is none.
// An unchanged or modified instance already tracked by the session is
// returned as a deep copy without querying the store; editing the copy
// never reaches the tracked instance.
func (r *ReadRepository[T]) GetByID(ctx context.Context, id any) (*T, error) {
	if err := r.ValidateID(id); err != nil {
		return nil, err
	}

	if e, ok := r.session.tracker.lookupKey(r.meta, id); ok {
		if e.state == datastore.Unchanged || e.state == datastore.Modified {
			return copyEntity(e.ptr.Interface().(*T)), nil
		}
	}

	ent, err := newQuery[T](r.session).Where(datastore.Eq(r.meta.key.name, id)).First(ctx)
	if err != nil {
		return nil, r.HandleGetError(err, "get_by_id", id)
	}
	return ent, nil
}

// Find returns a lazy query with spec applied. A nil spec matches every
// entity.
func (r *ReadRepository[T]) Find(spec datastore.Specification[T]) datastore.Query[T] {
	return datastore.Evaluate[T](newQuery[T](r.session), spec)
}

// List materializes Find(spec).
func (r *ReadRepository[T]) List(ctx context.Context, spec datastore.Specification[T]) ([]T, error) {
	items, err := r.Find(spec).List(ctx)
	if err != nil {
		return nil, r.HandleQueryError(err, "list", nil)
	}
	return items, nil
}

// Any reports whether at least one entity matches criteria.
func (r *ReadRepository[T]) Any(ctx context.Context, criteria datastore.Node) (bool, error) {
	found, err := newQuery[T](r.session).Where(criteria).Any(ctx)
	if err != nil {
		return false, r.HandleQueryError(err, "any", nil)
	}
	return found, nil
}

// Count returns the number of entities matching criteria.
func (r *ReadRepository[T]) Count(ctx context.Context, criteria datastore.Node) (int64, error) {
	n, err := newQuery[T](r.session).Where(criteria).Count(ctx)
	if err != nil {
		return 0, r.HandleQueryError(err, "count", nil)
	}
	return n, nil
}
