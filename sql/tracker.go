package sqlstore

import (
	"fmt"
	"reflect"

	"datastore"
)

// entry is one tracked entity instance.
type entry struct {
	ptr      reflect.Value // *T
	meta     *entityMeta
	state    datastore.EntityState
	original []any // column snapshot as of the last load or commit
}

func (e *entry) value() reflect.Value { return e.ptr.Elem() }

func (e *entry) key() any { return e.meta.keyOf(e.value()) }

func (e *entry) hasKey() bool { return !e.meta.keyIsZero(e.value()) }

type identity struct {
	table string
	key   string
}

func identityOf(meta *entityMeta, key any) identity {
	return identity{table: meta.table, key: fmt.Sprint(key)}
}

// EntryInfo is a read-only view of a tracked entity.
type EntryInfo struct {
	Table  string
	Key    any
	State  datastore.EntityState
	Entity any // the tracked pointer
}

// ChangeTracker records the entities staged in a session and their states.
// Entries keep the order in which they were first tracked.
type ChangeTracker struct {
	entries []*entry
	byPtr   map[any]*entry
	byKey   map[identity]*entry
}

func newChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		byPtr: make(map[any]*entry),
		byKey: make(map[identity]*entry),
	}
}

// Entries returns a snapshot of every tracked entry in tracking order.
func (t *ChangeTracker) Entries() []EntryInfo {
	out := make([]EntryInfo, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, EntryInfo{
			Table:  e.meta.table,
			Key:    e.key(),
			State:  e.state,
			Entity: e.ptr.Interface(),
		})
	}
	return out
}

// HasChanges reports whether a commit would write anything.
func (t *ChangeTracker) HasChanges() bool {
	t.DetectChanges()
	for _, e := range t.entries {
		if e.state.IsPending() {
			return true
		}
	}
	return false
}

// DetectChanges marks Unchanged entries whose columns were edited in place
// as Modified.
func (t *ChangeTracker) DetectChanges() {
	for _, e := range t.entries {
		if e.state == datastore.Unchanged && e.meta.changed(e.value(), e.original) {
			e.state = datastore.Modified
		}
	}
}

// Clear detaches every entry.
func (t *ChangeTracker) Clear() {
	t.entries = nil
	t.byPtr = make(map[any]*entry)
	t.byKey = make(map[identity]*entry)
}

// Len returns the number of tracked entries.
func (t *ChangeTracker) Len() int { return len(t.entries) }

// StateOf returns the state of the tracked pointer, or Detached.
func (t *ChangeTracker) StateOf(entity any) datastore.EntityState {
	if e, ok := t.byPtr[entity]; ok {
		return e.state
	}
	return datastore.Detached
}

// pending returns the entries written on commit, in tracking order.
func (t *ChangeTracker) pending() []*entry {
	var out []*entry
	for _, e := range t.entries {
		if e.state.IsPending() {
			out = append(out, e)
		}
	}
	return out
}

func (t *ChangeTracker) lookupPtr(ptr reflect.Value) (*entry, bool) {
	e, ok := t.byPtr[ptr.Interface()]
	return e, ok
}

func (t *ChangeTracker) lookupKey(meta *entityMeta, key any) (*entry, bool) {
	e, ok := t.byKey[identityOf(meta, key)]
	return e, ok
}

// attach starts tracking ptr in state. A different instance holding the
// same key is replaced when Unchanged and rejected otherwise.
func (t *ChangeTracker) attach(ptr reflect.Value, meta *entityMeta, state datastore.EntityState) (*entry, error) {
	e := &entry{ptr: ptr, meta: meta, state: state}
	if e.hasKey() {
		id := identityOf(meta, e.key())
		if other, ok := t.byKey[id]; ok && other.ptr.Pointer() != ptr.Pointer() {
			if other.state != datastore.Unchanged {
				return nil, fmt.Errorf("%w: %s %v", datastore.ErrAlreadyTracked, meta.table, e.key())
			}
			t.detach(other)
		}
		t.byKey[id] = e
	}
	e.original = meta.snapshot(e.value())
	t.entries = append(t.entries, e)
	t.byPtr[ptr.Interface()] = e
	return e, nil
}

// detach stops tracking e.
func (t *ChangeTracker) detach(e *entry) {
	for i, cur := range t.entries {
		if cur == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	delete(t.byPtr, e.ptr.Interface())
	for id, cur := range t.byKey {
		if cur == e {
			delete(t.byKey, id)
		}
	}
	e.state = datastore.Detached
}

// accept marks e as matching the store after a successful write.
func (t *ChangeTracker) accept(e *entry) {
	switch e.state {
	case datastore.Deleted:
		t.detach(e)
		return
	case datastore.Added:
		// generated keys are only known now
		t.byKey[identityOf(e.meta, e.key())] = e
	}
	e.state = datastore.Unchanged
	e.original = e.meta.snapshot(e.value())
}
