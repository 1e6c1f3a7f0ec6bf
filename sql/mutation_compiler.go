package sqlstore

import (
	"fmt"
	"sort"
	"strings"

	"datastore"
)

// CompileMutation compiles a mutation against the compiler's table.
// Columns are emitted in sorted order.
func (c *SQLCompiler) CompileMutation(m datastore.Mutation) (*CompiledSQL, error) {
	switch mt := m.(type) {
	case datastore.Insert:
		return c.compileInsert(mt)
	case datastore.Update:
		return c.compileUpdate(mt)
	case datastore.Delete:
		return c.compileDelete(mt)
	default:
		return nil, fmt.Errorf("%w: unsupported mutation type %T", datastore.ErrInvalidQuery, m)
	}
}

func (c *SQLCompiler) compileInsert(m datastore.Insert) (*CompiledSQL, error) {
	if len(m.Values) == 0 {
		return nil, fmt.Errorf("%w: insert into %s has no values", datastore.ErrInvalidQuery, c.meta.table)
	}
	cols, values, err := c.sortedColumns(m.Values)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = c.quote(col)
		args[i] = values[col]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.table(),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	if len(m.Returning) > 0 && c.adapter.SupportsReturning() {
		ret := make([]string, len(m.Returning))
		for i, col := range m.Returning {
			ret[i] = c.quote(col)
		}
		sql += " RETURNING " + strings.Join(ret, ", ")
	}
	return &CompiledSQL{SQL: sql, Args: args}, nil
}

func (c *SQLCompiler) compileUpdate(m datastore.Update) (*CompiledSQL, error) {
	if len(m.Set) == 0 {
		return nil, fmt.Errorf("%w: update of %s has no set values", datastore.ErrInvalidQuery, c.meta.table)
	}
	cols, values, err := c.sortedColumns(m.Set)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		parts[i] = c.quote(col) + " = ?"
		args = append(args, values[col])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", c.table(), strings.Join(parts, ", "))
	where, wargs, err := c.whereClause(m.Where)
	if err != nil {
		return nil, err
	}
	return &CompiledSQL{SQL: sql + where, Args: append(args, wargs...)}, nil
}

func (c *SQLCompiler) compileDelete(m datastore.Delete) (*CompiledSQL, error) {
	where, args, err := c.whereClause(m.Where)
	if err != nil {
		return nil, err
	}
	return &CompiledSQL{SQL: "DELETE FROM " + c.table() + where, Args: args}, nil
}

// sortedColumns validates the keys of values and returns them as column
// names in sorted order, with values re-keyed by column name.
func (c *SQLCompiler) sortedColumns(values map[string]any) ([]string, map[string]any, error) {
	cols := make([]string, 0, len(values))
	byColumn := make(map[string]any, len(values))
	for k, v := range values {
		col, err := c.meta.column(k)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, col.name)
		byColumn[col.name] = v
	}
	sort.Strings(cols)
	return cols, byColumn, nil
}
