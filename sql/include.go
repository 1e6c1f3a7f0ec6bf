package sqlstore

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx/reflectx"

	"datastore"
)

// loader is the SQL side of a navigation: it fills the navigation on every
// owner, continuing with rest (a dotted path on the related type) when set.
type loader[T any] interface {
	datastore.Navigation[T]
	load(ctx context.Context, s *Session, owners []*T, rest string) error
	// check resolves rest on the related type without loading anything
	check(rest string) error
}

type hasMany[T, R datastore.Entity] struct {
	path       string
	foreignKey string
	assign     func(*T, []R)
}

// HasMany declares a one-to-many navigation from T to R. foreignKey is the
// column of R referencing T's key; assign stores the loaded children on
// their owner and is called for every owner, with nil when it has none.
func HasMany[T, R datastore.Entity](path, foreignKey string, assign func(*T, []R)) datastore.Navigation[T] {
	return hasMany[T, R]{path: path, foreignKey: foreignKey, assign: assign}
}

func (n hasMany[T, R]) Path() string { return n.path }

func (n hasMany[T, R]) check(rest string) error { return checkPath[R](rest) }

func (n hasMany[T, R]) load(ctx context.Context, s *Session, owners []*T, rest string) error {
	ownerMeta, err := metaFor[T]()
	if err != nil {
		return err
	}

	var keys []any
	seen := make(map[string]bool)
	for _, o := range owners {
		v := reflect.ValueOf(o).Elem()
		if ownerMeta.keyIsZero(v) {
			continue
		}
		k := ownerMeta.keyOf(v)
		if id := fmt.Sprint(k); !seen[id] {
			seen[id] = true
			keys = append(keys, k)
		}
	}

	groups := make(map[string][]R)
	if len(keys) > 0 {
		children, err := fetchRelated[R](ctx, s, n.foreignKey, keys, rest)
		if err != nil {
			return err
		}
		relMeta, _ := metaFor[R]()
		fk, err := relMeta.column(n.foreignKey)
		if err != nil {
			return err
		}
		for _, child := range children {
			ref, ok := refValue(reflect.ValueOf(&child).Elem(), fk)
			if !ok {
				continue
			}
			id := fmt.Sprint(ref)
			groups[id] = append(groups[id], child)
		}
	}

	for _, o := range owners {
		v := reflect.ValueOf(o).Elem()
		n.assign(o, groups[fmt.Sprint(ownerMeta.keyOf(v))])
	}
	return nil
}

type belongsTo[T, R datastore.Entity] struct {
	path       string
	foreignKey string
	assign     func(*T, *R)
}

// BelongsTo declares a many-to-one navigation from T to R. foreignKey is the
// column of T referencing R's key; assign stores the loaded parent on the
// owner, nil when the reference is unset or dangling.
func BelongsTo[T, R datastore.Entity](path, foreignKey string, assign func(*T, *R)) datastore.Navigation[T] {
	return belongsTo[T, R]{path: path, foreignKey: foreignKey, assign: assign}
}

func (n belongsTo[T, R]) Path() string { return n.path }

func (n belongsTo[T, R]) check(rest string) error { return checkPath[R](rest) }

func (n belongsTo[T, R]) load(ctx context.Context, s *Session, owners []*T, rest string) error {
	ownerMeta, err := metaFor[T]()
	if err != nil {
		return err
	}
	fk, err := ownerMeta.column(n.foreignKey)
	if err != nil {
		return err
	}
	relMeta, err := metaFor[R]()
	if err != nil {
		return err
	}

	var refs []any
	seen := make(map[string]bool)
	for _, o := range owners {
		ref, ok := refValue(reflect.ValueOf(o).Elem(), fk)
		if !ok {
			continue
		}
		if id := fmt.Sprint(ref); !seen[id] {
			seen[id] = true
			refs = append(refs, ref)
		}
	}

	parents := make(map[string]*R)
	if len(refs) > 0 {
		rows, err := fetchRelated[R](ctx, s, relMeta.key.name, refs, rest)
		if err != nil {
			return err
		}
		for i := range rows {
			parents[fmt.Sprint(relMeta.keyOf(reflect.ValueOf(&rows[i]).Elem()))] = &rows[i]
		}
	}

	for _, o := range owners {
		ref, ok := refValue(reflect.ValueOf(o).Elem(), fk)
		if !ok {
			n.assign(o, nil)
			continue
		}
		n.assign(o, parents[fmt.Sprint(ref)])
	}
	return nil
}

// refValue reads a reference column, dereferencing nullable pointers. It
// reports false for unset references.
func refValue(v reflect.Value, col column) (any, bool) {
	f := reflectx.FieldByIndexesReadOnly(v, col.index)
	for f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil, false
		}
		f = f.Elem()
	}
	if f.IsZero() {
		return nil, false
	}
	return f.Interface(), true
}

// fetchRelated loads the R rows whose column is one of values, then loads
// rest on them.
func fetchRelated[R datastore.Entity](ctx context.Context, s *Session, column string, values []any, rest string) ([]R, error) {
	meta, err := metaFor[R]()
	if err != nil {
		return nil, err
	}
	compiled, err := s.compiler(meta).Select(selection{where: datastore.In(column, values...)})
	if err != nil {
		return nil, err
	}

	var rows []R
	if err := s.selectContext(ctx, &rows, compiled); err != nil {
		return nil, datastore.WrapQueryError(err, "include", meta.table, compiled.SQL, compiled.Args)
	}
	if rest != "" && len(rows) > 0 {
		if err := loadPath(ctx, s, pointersTo(rows), rest); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// loadPath resolves a dotted include path on T and loads it on owners.
func loadPath[T datastore.Entity](ctx context.Context, s *Session, owners []*T, path string) error {
	l, rest, err := resolveInclude[T](path)
	if err != nil {
		return err
	}
	return l.load(ctx, s, owners, rest)
}

// checkPath resolves every segment of a dotted include path on T.
func checkPath[T datastore.Entity](path string) error {
	if path == "" {
		return nil
	}
	l, rest, err := resolveInclude[T](path)
	if err != nil {
		return err
	}
	return l.check(rest)
}

// resolveInclude finds the navigation named by the first segment of path
// among those T registers through datastore.Navigable.
func resolveInclude[T datastore.Entity](path string) (loader[T], string, error) {
	head, rest, _ := strings.Cut(path, ".")
	var zero T

	var navs []datastore.Navigation[T]
	if nb, ok := any(zero).(datastore.Navigable[T]); ok {
		navs = nb.Navigations()
	} else if nb, ok := any(&zero).(datastore.Navigable[T]); ok {
		navs = nb.Navigations()
	}

	for _, nav := range navs {
		if !strings.EqualFold(nav.Path(), head) {
			continue
		}
		if l, ok := nav.(loader[T]); ok {
			return l, rest, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %q on %s", datastore.ErrUnknownInclude, path, zero.TableName())
}

// asLoader converts a typed navigation into its loader.
func asLoader[T datastore.Entity](nav datastore.Navigation[T]) (loader[T], error) {
	if l, ok := nav.(loader[T]); ok {
		return l, nil
	}
	var zero T
	path := "<nil>"
	if nav != nil {
		path = nav.Path()
	}
	return nil, fmt.Errorf("%w: %q on %s is not a SQL navigation", datastore.ErrUnknownInclude, path, zero.TableName())
}

func pointersTo[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
