package sqlstore

import (
	"fmt"
	"reflect"
	"strings"

	"datastore"
	"datastore/sql/adapter"
)

// CompiledSQL represents a compiled SQL statement with arguments. SQL uses
// ? placeholders; the session rebinds them for the driver.
type CompiledSQL struct {
	SQL  string
	Args []any
}

// selection is everything a lazy query contributes to a SELECT.
type selection struct {
	where  datastore.Node
	order  string
	desc   bool
	limit  *int
	offset *int
}

func (s selection) windowed() bool { return s.limit != nil || s.offset != nil }

// SQLCompiler compiles criteria, ordering and windows of one entity type
// into the SQL of one dialect.
type SQLCompiler struct {
	adapter adapter.Adapter
	meta    *entityMeta
}

func NewSQLCompiler(adpt adapter.Adapter, meta *entityMeta) *SQLCompiler {
	return &SQLCompiler{adapter: adpt, meta: meta}
}

func (c *SQLCompiler) quote(ident string) string {
	return c.adapter.QuoteIdentifier(ident)
}

func (c *SQLCompiler) table() string {
	return c.quote(c.meta.table)
}

func (c *SQLCompiler) columnList() string {
	cols := make([]string, len(c.meta.columns))
	for i, col := range c.meta.columns {
		cols[i] = c.quote(col.name)
	}
	return strings.Join(cols, ", ")
}

// Select compiles a SELECT of every column.
func (c *SQLCompiler) Select(sel selection) (*CompiledSQL, error) {
	return c.selectColumns(c.columnList(), sel)
}

// Count compiles a COUNT of the rows sel yields, window included.
func (c *SQLCompiler) Count(sel selection) (*CompiledSQL, error) {
	if !sel.windowed() {
		where, args, err := c.whereClause(sel.where)
		if err != nil {
			return nil, err
		}
		return &CompiledSQL{SQL: "SELECT COUNT(*) FROM " + c.table() + where, Args: args}, nil
	}
	inner, err := c.selectColumns("1", sel)
	if err != nil {
		return nil, err
	}
	return &CompiledSQL{SQL: "SELECT COUNT(*) FROM (" + inner.SQL + ") AS windowed", Args: inner.Args}, nil
}

// Exists compiles a query returning whether sel yields any row.
func (c *SQLCompiler) Exists(sel selection) (*CompiledSQL, error) {
	if !sel.windowed() {
		sel.order = ""
	}
	inner, err := c.selectColumns("1", sel)
	if err != nil {
		return nil, err
	}
	return &CompiledSQL{SQL: "SELECT EXISTS (" + inner.SQL + ")", Args: inner.Args}, nil
}

func (c *SQLCompiler) selectColumns(columns string, sel selection) (*CompiledSQL, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(" FROM ")
	b.WriteString(c.table())

	where, args, err := c.whereClause(sel.where)
	if err != nil {
		return nil, err
	}
	b.WriteString(where)

	order := sel.order
	desc := sel.desc
	if order == "" && sel.windowed() {
		// pages need a stable order
		order, desc = c.meta.key.name, false
	}
	if order != "" {
		col, err := c.meta.column(order)
		if err != nil {
			return nil, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(c.quote(col.name))
		if desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}

	b.WriteString(c.adapter.LimitOffset(sel.limit, sel.offset))
	return &CompiledSQL{SQL: b.String(), Args: args}, nil
}

func (c *SQLCompiler) whereClause(n datastore.Node) (string, []any, error) {
	if n == nil {
		return "", nil, nil
	}
	sql, args, err := c.compileNode(n)
	if err != nil || sql == "" {
		return "", nil, err
	}
	return " WHERE " + sql, args, nil
}

// Where compiles n alone. An empty result means no restriction.
func (c *SQLCompiler) Where(n datastore.Node) (string, []any, error) {
	if n == nil {
		return "", nil, nil
	}
	return c.compileNode(n)
}

func (c *SQLCompiler) compileNode(n datastore.Node) (string, []any, error) {
	switch v := n.(type) {
	case datastore.Condition:
		return c.compileCondition(v)
	case *datastore.Condition:
		return c.compileCondition(*v)
	case datastore.And:
		return c.compileGroup(v.Children, " AND ", "")
	case datastore.Or:
		// an empty disjunction matches nothing
		return c.compileGroup(v.Children, " OR ", "1=0")
	case datastore.Not:
		if v.Child == nil {
			return "1=0", nil, nil
		}
		s, args, err := c.compileNode(v.Child)
		if err != nil {
			return "", nil, err
		}
		if s == "" {
			return "1=0", nil, nil
		}
		return "NOT (" + s + ")", args, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported criteria node %T", datastore.ErrInvalidQuery, n)
	}
}

func (c *SQLCompiler) compileGroup(children []datastore.Node, sep, empty string) (string, []any, error) {
	parts := make([]string, 0, len(children))
	var args []any
	for _, ch := range children {
		if ch == nil {
			continue
		}
		s, a, err := c.compileNode(ch)
		if err != nil {
			return "", nil, err
		}
		if s == "" {
			if sep == " OR " {
				// one unrestricted branch makes the disjunction unrestricted
				return "", nil, nil
			}
			continue
		}
		parts = append(parts, s)
		args = append(args, a...)
	}
	switch len(parts) {
	case 0:
		return empty, nil, nil
	case 1:
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (c *SQLCompiler) compileCondition(cond datastore.Condition) (string, []any, error) {
	col, err := c.meta.column(cond.Field)
	if err != nil {
		return "", nil, err
	}
	f := c.quote(col.name)

	switch cond.Op {
	case datastore.OpEq:
		if cond.Value == nil {
			return f + " IS NULL", nil, nil
		}
		return f + " = ?", []any{cond.Value}, nil
	case datastore.OpNe:
		if cond.Value == nil {
			return f + " IS NOT NULL", nil, nil
		}
		return f + " <> ?", []any{cond.Value}, nil
	case datastore.OpGt:
		return f + " > ?", []any{cond.Value}, nil
	case datastore.OpGe:
		return f + " >= ?", []any{cond.Value}, nil
	case datastore.OpLt:
		return f + " < ?", []any{cond.Value}, nil
	case datastore.OpLe:
		return f + " <= ?", []any{cond.Value}, nil
	case datastore.OpIn, datastore.OpNotIn:
		vals, err := listValues(cond)
		if err != nil {
			return "", nil, err
		}
		if len(vals) == 0 {
			if cond.Op == datastore.OpIn {
				return "1=0", nil, nil
			}
			return "1=1", nil, nil
		}
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
		op := " IN ("
		if cond.Op == datastore.OpNotIn {
			op = " NOT IN ("
		}
		return f + op + ph + ")", vals, nil
	case datastore.OpBetween:
		r, ok := cond.Value.([2]any)
		if !ok {
			return "", nil, fmt.Errorf("%w: between on %q needs a [2]any value", datastore.ErrInvalidQuery, cond.Field)
		}
		return f + " BETWEEN ? AND ?", []any{r[0], r[1]}, nil
	case datastore.OpPrefix:
		return f + " LIKE ?", []any{fmt.Sprintf("%v%%", cond.Value)}, nil
	case datastore.OpSuffix:
		return f + " LIKE ?", []any{fmt.Sprintf("%%%v", cond.Value)}, nil
	case datastore.OpContains:
		return f + " LIKE ?", []any{fmt.Sprintf("%%%v%%", cond.Value)}, nil
	case datastore.OpLike:
		return f + " LIKE ?", []any{cond.Value}, nil
	case datastore.OpILike:
		if c.adapter.SupportsILike() {
			return f + " ILIKE ?", []any{cond.Value}, nil
		}
		return "LOWER(" + f + ") LIKE LOWER(?)", []any{cond.Value}, nil
	case datastore.OpRegex:
		op, ok := c.adapter.RegexOperator()
		if !ok {
			return "", nil, fmt.Errorf("%w: regex on %s", datastore.ErrNotSupported, c.adapter.Name())
		}
		return f + " " + op + " ?", []any{cond.Value}, nil
	case datastore.OpIsNull:
		return f + " IS NULL", nil, nil
	case datastore.OpNotNull:
		return f + " IS NOT NULL", nil, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown operator %q", datastore.ErrInvalidQuery, cond.Op)
	}
}

// listValues flattens the value of an IN condition. Any slice is accepted.
func listValues(cond datastore.Condition) ([]any, error) {
	switch v := cond.Value.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(v) != 1 {
			return v, nil
		}
		// In("id", ids) passes the slice as the only variadic element
		if rv := reflect.ValueOf(v[0]); rv.Kind() != reflect.Slice || rv.Type() == bytesType {
			return v, nil
		}
		return listValues(datastore.Condition{Field: cond.Field, Op: cond.Op, Value: v[0]})
	}
	rv := reflect.ValueOf(cond.Value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %s on %q needs a list value", datastore.ErrInvalidQuery, cond.Op, cond.Field)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
