package sqlstore

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/reflectx"

	"datastore"
)

// mapper resolves struct fields to columns the same way sqlx scans them.
var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

var metaCache sync.Map // reflect.Type -> *entityMeta

var (
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

type column struct {
	name  string
	field string
	index []int
}

// entityMeta describes how an entity type maps onto its table.
type entityMeta struct {
	typ     reflect.Type
	name    string
	table   string
	key     column
	columns []column // declaration order, key included
	lookup  map[string]column
}

// metaFor returns the cached mapping of T.
func metaFor[T datastore.Entity]() (*entityMeta, error) {
	var zero T
	return metaOf(reflect.TypeOf(zero), zero)
}

func metaOf(typ reflect.Type, ent datastore.Entity) (*entityMeta, error) {
	if cached, ok := metaCache.Load(typ); ok {
		return cached.(*entityMeta), nil
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, datastore.NewValidationError(fmt.Sprintf("entity type %v is not a struct", typ))
	}

	m := &entityMeta{
		typ:    typ,
		name:   typ.Name(),
		table:  ent.TableName(),
		lookup: make(map[string]column),
	}
	if m.table == "" {
		return nil, datastore.NewValidationError(fmt.Sprintf("entity %s has no table name", m.name))
	}

	seen := make(map[string]bool)
	for _, fi := range mapper.TypeMap(typ).Index {
		if fi.Embedded || fi.Name == "" || strings.Contains(fi.Path, ".") {
			continue
		}
		if !isColumnType(fi.Field.Type) || seen[fi.Name] {
			continue
		}
		seen[fi.Name] = true

		col := column{name: fi.Name, field: fi.Field.Name, index: fi.Index}
		m.columns = append(m.columns, col)
		m.lookup[col.name] = col
		if _, taken := m.lookup[strings.ToLower(col.field)]; !taken {
			m.lookup[strings.ToLower(col.field)] = col
		}
	}

	keyName := datastore.KeyColumnOf(ent)
	key, ok := m.lookup[keyName]
	if !ok || key.name != keyName {
		return nil, datastore.NewValidationErrorForField(keyName, nil,
			fmt.Sprintf("entity %s has no key column %q", m.name, keyName))
	}
	m.key = key

	actual, _ := metaCache.LoadOrStore(typ, m)
	return actual.(*entityMeta), nil
}

// isColumnType reports whether a field of type t holds a scalar column
// rather than a navigation.
func isColumnType(t reflect.Type) bool {
	if t == timeType || t == bytesType {
		return true
	}
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface:
		return false
	case reflect.Pointer:
		return isColumnType(t.Elem())
	}
	return true
}

// column resolves a criteria field by column name or, failing that, by Go
// field name (case-insensitive).
func (m *entityMeta) column(field string) (column, error) {
	if col, ok := m.lookup[field]; ok {
		return col, nil
	}
	if col, ok := m.lookup[strings.ToLower(field)]; ok {
		return col, nil
	}
	return column{}, fmt.Errorf("%w: %q on %s", datastore.ErrUnknownField, field, m.name)
}

// columnNames returns every column in declaration order.
func (m *entityMeta) columnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.name
	}
	return names
}

// keyGenerated reports whether the store assigns the key (integer keys).
func (m *entityMeta) keyGenerated() bool {
	switch m.typ.FieldByIndex(m.key.index).Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func (m *entityMeta) keyOf(v reflect.Value) any {
	return reflectx.FieldByIndexesReadOnly(v, m.key.index).Interface()
}

func (m *entityMeta) keyIsZero(v reflect.Value) bool {
	return reflectx.FieldByIndexesReadOnly(v, m.key.index).IsZero()
}

// setKey assigns id to the key field, converting between numeric kinds.
func (m *entityMeta) setKey(v reflect.Value, id any) error {
	f := reflectx.FieldByIndexes(v, m.key.index)
	val := reflect.ValueOf(id)
	if !val.IsValid() {
		return datastore.ErrMissingKey
	}
	if !val.Type().ConvertibleTo(f.Type()) {
		return datastore.NewValidationErrorForField(m.key.name, id,
			fmt.Sprintf("cannot assign %T to key of %s", id, m.name))
	}
	f.Set(val.Convert(f.Type()))
	return nil
}

// snapshot copies every column value of v in column order.
func (m *entityMeta) snapshot(v reflect.Value) []any {
	out := make([]any, len(m.columns))
	for i, c := range m.columns {
		out[i] = snapshotValue(reflectx.FieldByIndexesReadOnly(v, c.index))
	}
	return out
}

func snapshotValue(f reflect.Value) any {
	return deepCopy(f).Interface()
}

// copyEntity returns a copy of the entity behind ptr that shares no
// pointers, slices or maps with it.
func copyEntity[T any](ptr *T) *T {
	cp := deepCopy(reflect.ValueOf(ptr).Elem()).Interface().(T)
	return &cp
}

// deepCopy copies v, following pointers, slices, maps and exported struct
// fields. Unexported fields are copied as they are.
func deepCopy(v reflect.Value) reflect.Value {
	return deepCopyVisit(v, make(map[uintptr]reflect.Value))
}

func deepCopyVisit(v reflect.Value, seen map[uintptr]reflect.Value) reflect.Value {
	out := reflect.New(v.Type()).Elem()
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return out
		}
		if cp, ok := seen[v.Pointer()]; ok {
			return cp
		}
		cp := reflect.New(v.Type().Elem())
		seen[v.Pointer()] = cp
		cp.Elem().Set(deepCopyVisit(v.Elem(), seen))
		return cp
	case reflect.Slice:
		if v.IsNil() {
			return out
		}
		out.Set(reflect.MakeSlice(v.Type(), v.Len(), v.Len()))
		if v.Type() == bytesType {
			reflect.Copy(out, v)
			return out
		}
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopyVisit(v.Index(i), seen))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return out
		}
		out.Set(reflect.MakeMapWithSize(v.Type(), v.Len()))
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopyVisit(iter.Value(), seen))
		}
		return out
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopyVisit(v.Index(i), seen))
		}
		return out
	case reflect.Struct:
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(deepCopyVisit(v.Field(i), seen))
			}
		}
		return out
	default:
		out.Set(v)
		return out
	}
}

// changed reports whether v differs from a snapshot taken earlier.
func (m *entityMeta) changed(v reflect.Value, snap []any) bool {
	for i, c := range m.columns {
		if !reflect.DeepEqual(reflectx.FieldByIndexesReadOnly(v, c.index).Interface(), snap[i]) {
			return true
		}
	}
	return false
}

// values returns column -> value for v, leaving out the key when skipKey.
func (m *entityMeta) values(v reflect.Value, skipKey bool) map[string]any {
	out := make(map[string]any, len(m.columns))
	for _, c := range m.columns {
		if skipKey && c.name == m.key.name {
			continue
		}
		out[c.name] = reflectx.FieldByIndexesReadOnly(v, c.index).Interface()
	}
	return out
}
