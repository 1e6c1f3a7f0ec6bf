package sqlstore

import (
	"context"
	"time"

	"datastore"
)

// query is the lazy, untracked datastore.Query of the SQL store. Builder
// methods copy the receiver; nothing runs until a terminal method.
type query[T datastore.Entity] struct {
	session  *Session
	meta     *entityMeta
	err      error
	filters  []datastore.Node
	includes []datastore.Navigation[T]
	paths    []string
	order    string
	desc     bool
	offset   *int
	limit    *int
}

func newQuery[T datastore.Entity](s *Session) *query[T] {
	meta, err := metaFor[T]()
	return &query[T]{session: s, meta: meta, err: err}
}

func (q *query[T]) clone() *query[T] {
	c := *q
	c.filters = append([]datastore.Node(nil), q.filters...)
	c.includes = append([]datastore.Navigation[T](nil), q.includes...)
	c.paths = append([]string(nil), q.paths...)
	return &c
}

// Where adds criteria, ANDed with any earlier criteria. Nil is ignored.
func (q *query[T]) Where(criteria datastore.Node) datastore.Query[T] {
	c := q.clone()
	if criteria != nil {
		c.filters = append(c.filters, criteria)
	}
	return c
}

func (q *query[T]) Include(nav datastore.Navigation[T]) datastore.Query[T] {
	c := q.clone()
	c.includes = append(c.includes, nav)
	return c
}

func (q *query[T]) IncludePath(path string) datastore.Query[T] {
	c := q.clone()
	if path != "" {
		c.paths = append(c.paths, path)
	}
	return c
}

// OrderBy replaces any earlier ordering.
func (q *query[T]) OrderBy(field string) datastore.Query[T] {
	c := q.clone()
	c.order, c.desc = field, false
	return c
}

// OrderByDescending replaces any earlier ordering.
func (q *query[T]) OrderByDescending(field string) datastore.Query[T] {
	c := q.clone()
	c.order, c.desc = field, true
	return c
}

// Skip bypasses the first n results of the query so far.
func (q *query[T]) Skip(n int) datastore.Query[T] {
	c := q.clone()
	n = max(n, 0)
	offset := n
	if q.offset != nil {
		offset += *q.offset
	}
	c.offset = &offset
	if q.limit != nil {
		limit := max(*q.limit-n, 0)
		c.limit = &limit
	}
	return c
}

// Take keeps at most n results of the query so far.
func (q *query[T]) Take(n int) datastore.Query[T] {
	c := q.clone()
	n = max(n, 0)
	if q.limit != nil && *q.limit < n {
		n = *q.limit
	}
	c.limit = &n
	return c
}

func (q *query[T]) selection() selection {
	return selection{
		where:  datastore.AllOf(q.filters...),
		order:  q.order,
		desc:   q.desc,
		limit:  q.limit,
		offset: q.offset,
	}
}

// List runs the query and eagerly loads its includes.
func (q *query[T]) List(ctx context.Context) (items []T, err error) {
	if q.err != nil {
		return nil, q.err
	}
	start := time.Now()
	defer func() { q.session.observe("list", q.meta.table, start, err) }()

	steps, err := q.includePlan()
	if err != nil {
		return nil, err
	}
	compiled, err := q.session.compiler(q.meta).Select(q.selection())
	if err != nil {
		return nil, err
	}

	items = []T{}
	if err := q.session.selectContext(ctx, &items, compiled); err != nil {
		return nil, datastore.WrapQueryError(err, "list", q.meta.table, compiled.SQL, compiled.Args)
	}

	if err := q.loadIncludes(ctx, steps, items); err != nil {
		return nil, err
	}
	return items, nil
}

type includeStep[T any] struct {
	l    loader[T]
	rest string
}

// includePlan resolves every include, nested path segments included, so an
// unknown include fails before the main query runs.
func (q *query[T]) includePlan() ([]includeStep[T], error) {
	if len(q.includes) == 0 && len(q.paths) == 0 {
		return nil, nil
	}
	steps := make([]includeStep[T], 0, len(q.includes)+len(q.paths))
	for _, nav := range q.includes {
		l, err := asLoader[T](nav)
		if err != nil {
			return nil, err
		}
		steps = append(steps, includeStep[T]{l: l})
	}
	for _, p := range q.paths {
		l, rest, err := resolveInclude[T](p)
		if err != nil {
			return nil, err
		}
		if err := l.check(rest); err != nil {
			return nil, err
		}
		steps = append(steps, includeStep[T]{l: l, rest: rest})
	}
	return steps, nil
}

func (q *query[T]) loadIncludes(ctx context.Context, steps []includeStep[T], items []T) error {
	if len(steps) == 0 || len(items) == 0 {
		return nil
	}
	owners := pointersTo(items)
	for _, st := range steps {
		if err := st.l.load(ctx, q.session, owners, st.rest); err != nil {
			return err
		}
	}
	return nil
}

// First returns the first result, or nil when the query is empty.
func (q *query[T]) First(ctx context.Context) (*T, error) {
	items, err := q.Take(1).List(ctx)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// Count returns the number of results, honouring Skip and Take.
func (q *query[T]) Count(ctx context.Context) (n int64, err error) {
	if q.err != nil {
		return 0, q.err
	}
	start := time.Now()
	defer func() { q.session.observe("count", q.meta.table, start, err) }()

	compiled, err := q.session.compiler(q.meta).Count(q.selection())
	if err != nil {
		return 0, err
	}
	if err := q.session.getContext(ctx, &n, compiled); err != nil {
		return 0, datastore.WrapQueryError(err, "count", q.meta.table, compiled.SQL, compiled.Args)
	}
	return n, nil
}

// Any reports whether the query has at least one result.
func (q *query[T]) Any(ctx context.Context) (found bool, err error) {
	if q.err != nil {
		return false, q.err
	}
	start := time.Now()
	defer func() { q.session.observe("any", q.meta.table, start, err) }()

	compiled, err := q.session.compiler(q.meta).Exists(q.selection())
	if err != nil {
		return false, err
	}
	if err := q.session.getContext(ctx, &found, compiled); err != nil {
		return false, datastore.WrapQueryError(err, "any", q.meta.table, compiled.SQL, compiled.Args)
	}
	return found, nil
}
