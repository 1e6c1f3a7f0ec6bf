package datastore

// Navigation is a typed directive to eagerly load entities related to T.
// Backends provide the implementations (see sqlstore.HasMany).
type Navigation[T any] interface {
	// Path names the navigation, e.g. "Orders"
	Path() string
}

// Navigable is implemented by entities that register their navigations so
// they can be included by path.
type Navigable[T any] interface {
	Navigations() []Navigation[T]
}

// Specification describes a query declaratively: filter criteria, eager
// loads, ordering and an optional paging window.
type Specification[T any] interface {
	Criteria() Node
	Includes() []Navigation[T]
	IncludeStrings() []string
	OrderBy() string
	OrderByDescending() string
	Skip() int
	Take() int
	IsPagingEnabled() bool
}

// Spec is the standard Specification value. Builder methods return a new
// Spec and never modify the receiver, so a Spec can be shared freely.
type Spec[T any] struct {
	criteria       Node
	includes       []Navigation[T]
	includeStrings []string
	orderBy        string
	orderByDesc    string
	skip           int
	take           int
	paging         bool
}

var _ Specification[struct{}] = Spec[struct{}]{}

// NewSpec returns an empty specification matching every entity.
func NewSpec[T any]() Spec[T] {
	return Spec[T]{}
}

// Where returns a copy whose criteria is the existing criteria ANDed with n.
func (s Spec[T]) Where(n Node) Spec[T] {
	s.criteria = AllOf(s.criteria, n)
	return s
}

// Include returns a copy that eagerly loads nav.
func (s Spec[T]) Include(nav Navigation[T]) Spec[T] {
	s.includes = appendCopy(s.includes, nav)
	return s
}

// IncludePath returns a copy that eagerly loads the navigation at path.
// Nested paths are dot separated, e.g. "Items.Product".
func (s Spec[T]) IncludePath(path string) Spec[T] {
	s.includeStrings = appendCopy(s.includeStrings, path)
	return s
}

// SortBy returns a copy ordered ascending by field.
func (s Spec[T]) SortBy(field string) Spec[T] {
	s.orderBy = field
	return s
}

// SortByDescending returns a copy ordered descending by field. When both
// directions are set, ascending wins.
func (s Spec[T]) SortByDescending(field string) Spec[T] {
	s.orderByDesc = field
	return s
}

// Paginate returns a copy with paging enabled over [skip, skip+take).
func (s Spec[T]) Paginate(skip, take int) Spec[T] {
	s.skip = max(skip, 0)
	s.take = max(take, 0)
	s.paging = true
	return s
}

// Page returns a copy with paging enabled for the zero-based page index.
func (s Spec[T]) Page(index, size int) Spec[T] {
	index = max(index, 0)
	size = max(size, 0)
	return s.Paginate(index*size, size)
}

// WithoutPaging returns a copy with paging disabled. Skip and Take keep
// their values but are ignored.
func (s Spec[T]) WithoutPaging() Spec[T] {
	s.paging = false
	return s
}

func (s Spec[T]) Criteria() Node { return s.criteria }

func (s Spec[T]) Includes() []Navigation[T] {
	return append([]Navigation[T](nil), s.includes...)
}

func (s Spec[T]) IncludeStrings() []string {
	return append([]string(nil), s.includeStrings...)
}

func (s Spec[T]) OrderBy() string           { return s.orderBy }
func (s Spec[T]) OrderByDescending() string { return s.orderByDesc }

func (s Spec[T]) Skip() int             { return s.skip }
func (s Spec[T]) Take() int             { return s.take }
func (s Spec[T]) IsPagingEnabled() bool { return s.paging }

// appendCopy appends to a fresh backing array so copies of a Spec never
// share writes.
func appendCopy[E any](src []E, v E) []E {
	out := make([]E, len(src), len(src)+1)
	copy(out, src)
	return append(out, v)
}
