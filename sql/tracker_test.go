package sqlstore

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastore"
)

func TestTrackerAttachAndLookup(t *testing.T) {
	tr := newChangeTracker()
	meta := mustMeta[customer](t)
	c := &customer{ID: 1, Name: "ada"}

	e, err := tr.attach(reflect.ValueOf(c), meta, datastore.Unchanged)
	require.NoError(t, err)

	byPtr, ok := tr.lookupPtr(reflect.ValueOf(c))
	require.True(t, ok)
	assert.Same(t, e, byPtr)

	byKey, ok := tr.lookupKey(meta, int64(1))
	require.True(t, ok)
	assert.Same(t, e, byKey)

	assert.Equal(t, datastore.Unchanged, tr.StateOf(c))
	assert.Equal(t, datastore.Detached, tr.StateOf(&customer{ID: 1}))
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerIdentityConflicts(t *testing.T) {
	meta := mustMeta[customer](t)

	t.Run("unchanged instance is replaced", func(t *testing.T) {
		tr := newChangeTracker()
		first := &customer{ID: 1, Name: "ada"}
		second := &customer{ID: 1, Name: "ada"}
		_, err := tr.attach(reflect.ValueOf(first), meta, datastore.Unchanged)
		require.NoError(t, err)

		_, err = tr.attach(reflect.ValueOf(second), meta, datastore.Modified)
		require.NoError(t, err)
		assert.Equal(t, datastore.Detached, tr.StateOf(first))
		assert.Equal(t, datastore.Modified, tr.StateOf(second))
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("pending instance is protected", func(t *testing.T) {
		tr := newChangeTracker()
		first := &customer{ID: 1, Name: "ada"}
		_, err := tr.attach(reflect.ValueOf(first), meta, datastore.Modified)
		require.NoError(t, err)

		_, err = tr.attach(reflect.ValueOf(&customer{ID: 1}), meta, datastore.Deleted)
		assert.ErrorIs(t, err, datastore.ErrAlreadyTracked)
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("keyless entries never conflict", func(t *testing.T) {
		tr := newChangeTracker()
		for i := 0; i < 3; i++ {
			_, err := tr.attach(reflect.ValueOf(&customer{Name: "new"}), meta, datastore.Added)
			require.NoError(t, err)
		}
		assert.Equal(t, 3, tr.Len())
	})
}

func TestTrackerDetectChanges(t *testing.T) {
	tr := newChangeTracker()
	meta := mustMeta[customer](t)
	c := &customer{ID: 1, Name: "ada"}
	_, err := tr.attach(reflect.ValueOf(c), meta, datastore.Unchanged)
	require.NoError(t, err)

	assert.False(t, tr.HasChanges())

	c.Email = strPtr("ada@example.com")
	assert.True(t, tr.HasChanges())
	assert.Equal(t, datastore.Modified, tr.StateOf(c))
}

func TestTrackerNavigationsAreNotChanges(t *testing.T) {
	tr := newChangeTracker()
	c := &customer{ID: 1, Name: "ada"}
	_, err := tr.attach(reflect.ValueOf(c), mustMeta[customer](t), datastore.Unchanged)
	require.NoError(t, err)

	c.Orders = []order{{ID: 9}}
	assert.False(t, tr.HasChanges())
}

func TestTrackerAccept(t *testing.T) {
	tr := newChangeTracker()
	meta := mustMeta[customer](t)

	added := &customer{Name: "new"}
	eAdded, err := tr.attach(reflect.ValueOf(added), meta, datastore.Added)
	require.NoError(t, err)
	deleted := &customer{ID: 2, Name: "old"}
	eDeleted, err := tr.attach(reflect.ValueOf(deleted), meta, datastore.Deleted)
	require.NoError(t, err)

	added.ID = 5 // assigned by the store
	tr.accept(eAdded)
	tr.accept(eDeleted)

	assert.Equal(t, datastore.Unchanged, tr.StateOf(added))
	_, ok := tr.lookupKey(meta, int64(5))
	assert.True(t, ok)

	assert.Equal(t, datastore.Detached, tr.StateOf(deleted))
	_, ok = tr.lookupKey(meta, int64(2))
	assert.False(t, ok)
	assert.Empty(t, tr.pending())
}

func TestTrackerEntriesKeepOrder(t *testing.T) {
	tr := newChangeTracker()
	meta := mustMeta[tag](t)
	codes := []string{"c", "a", "b"}
	for _, code := range codes {
		_, err := tr.attach(reflect.ValueOf(&tag{Code: code}), meta, datastore.Added)
		require.NoError(t, err)
	}

	entries := tr.Entries()
	require.Len(t, entries, 3)
	for i, code := range codes {
		assert.Equal(t, code, entries[i].Key)
		assert.Equal(t, "tags", entries[i].Table)
		assert.Equal(t, datastore.Added, entries[i].State)
	}

	tr.Clear()
	assert.Zero(t, tr.Len())
	assert.False(t, tr.HasChanges())
}
