package adapter

import (
	"sort"
	"strings"
	"sync"

	"datastore"
)

// Factory builds a fresh adapter. Adapters hold no pool; the *sqlx.DB
// returned by Connect is owned and closed by the caller.
type Factory func() Adapter

var builtins = map[AdapterName]Factory{
	PostgreSQL: func() Adapter { return NewPostgreSQLAdapter() },
	"postgres": func() Adapter { return NewPostgreSQLAdapter() },
	MySQL:      func() Adapter { return NewMySQLAdapter() },
	SQLite:     func() Adapter { return NewSQLiteAdapter() },
	"sqlite3":  func() Adapter { return NewSQLiteAdapter() },
}

var globalRegistry = NewRegistry()

// Registry maps adapter names to factories. Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[AdapterName]Factory
}

// NewRegistry creates a registry holding the built-in adapters and their
// aliases.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[AdapterName]Factory, len(builtins))}
	for name, f := range builtins {
		r.factories[name] = f
	}
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name AdapterName, factory func() Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = factory
}

// Get returns a fresh adapter registered under name.
func (r *Registry) Get(name AdapterName) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[normalize(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, datastore.NewDriverError(datastore.ErrDriverNotFound, string(name), "lookup")
	}
	return factory(), nil
}

// List returns the registered names, aliases included, in sorted order.
func (r *Registry) List() []AdapterName {
	r.mu.RLock()
	names := make([]AdapterName, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name AdapterName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[normalize(name)]
	return ok
}

func normalize(name AdapterName) AdapterName {
	return AdapterName(strings.ToLower(strings.TrimSpace(string(name))))
}

// Register adds factory to the global registry.
func Register(name AdapterName, factory func() Adapter) { globalRegistry.Register(name, factory) }

// Get returns a fresh adapter from the global registry.
func Get(name AdapterName) (Adapter, error) { return globalRegistry.Get(name) }

// List returns the names in the global registry.
func List() []AdapterName { return globalRegistry.List() }

// Exists reports whether name is in the global registry.
func Exists(name AdapterName) bool { return globalRegistry.Exists(name) }
