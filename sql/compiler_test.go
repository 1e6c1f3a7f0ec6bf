package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datastore"
	"datastore/sql/adapter"
)

func intPtr(n int) *int { return &n }

func pgCompiler(t *testing.T) *SQLCompiler {
	return NewSQLCompiler(adapter.NewPostgreSQLAdapter(), mustMeta[order](t))
}

func TestCompileConditions(t *testing.T) {
	c := pgCompiler(t)

	tests := []struct {
		name string
		node datastore.Node
		sql  string
		args []any
	}{
		{"eq", datastore.Eq("status", "open"), `"status" = ?`, []any{"open"}},
		{"eq nil", datastore.Eq("status", nil), `"status" IS NULL`, nil},
		{"ne", datastore.Ne("status", "open"), `"status" <> ?`, []any{"open"}},
		{"ne nil", datastore.Ne("status", nil), `"status" IS NOT NULL`, nil},
		{"gt", datastore.Gt("total", 10), `"total" > ?`, []any{10}},
		{"ge", datastore.Ge("total", 10), `"total" >= ?`, []any{10}},
		{"lt", datastore.Lt("total", 10), `"total" < ?`, []any{10}},
		{"le", datastore.Le("total", 10), `"total" <= ?`, []any{10}},
		{"in", datastore.In("id", 1, 2, 3), `"id" IN (?, ?, ?)`, []any{1, 2, 3}},
		{"in slice", datastore.In("id", []int64{4, 5}), `"id" IN (?, ?)`, []any{int64(4), int64(5)}},
		{"in empty", datastore.In("id"), `1=0`, nil},
		{"not in", datastore.NotIn("id", 1), `"id" NOT IN (?)`, []any{1}},
		{"not in empty", datastore.NotIn("id"), `1=1`, nil},
		{"between", datastore.Between("total", 1, 9), `"total" BETWEEN ? AND ?`, []any{1, 9}},
		{"prefix", datastore.Prefix("status", "op"), `"status" LIKE ?`, []any{"op%"}},
		{"suffix", datastore.Suffix("status", "en"), `"status" LIKE ?`, []any{"%en"}},
		{"contains", datastore.Contains("status", "pe"), `"status" LIKE ?`, []any{"%pe%"}},
		{"like", datastore.Like("status", "o_en"), `"status" LIKE ?`, []any{"o_en"}},
		{"ilike", datastore.ILike("status", "OPEN"), `"status" ILIKE ?`, []any{"OPEN"}},
		{"regex", datastore.Regex("status", "^o"), `"status" ~ ?`, []any{"^o"}},
		{"isnull", datastore.IsNull("status"), `"status" IS NULL`, nil},
		{"notnull", datastore.NotNull("status"), `"status" IS NOT NULL`, nil},
		{"go field name", datastore.Eq("CustomerID", 1), `"customer_id" = ?`, []any{1}},
		{"pointer condition", &datastore.Condition{Field: "id", Op: datastore.OpEq, Value: 1}, `"id" = ?`, []any{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := c.Where(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileGroups(t *testing.T) {
	c := pgCompiler(t)
	a, b := datastore.Eq("status", "open"), datastore.Gt("total", 5)

	tests := []struct {
		name string
		node datastore.Node
		sql  string
		args []any
	}{
		{"and", datastore.And{Children: []datastore.Node{a, b}}, `("status" = ? AND "total" > ?)`, []any{"open", 5}},
		{"or", datastore.Or{Children: []datastore.Node{a, b}}, `("status" = ? OR "total" > ?)`, []any{"open", 5}},
		{"not", datastore.Not{Child: a}, `NOT ("status" = ?)`, []any{"open"}},
		{"nested", datastore.AnyOf(datastore.AllOf(a, b), datastore.IsNull("status")),
			`(("status" = ? AND "total" > ?) OR "status" IS NULL)`, []any{"open", 5}},
		{"single child", datastore.And{Children: []datastore.Node{a}}, `"status" = ?`, []any{"open"}},
		{"empty and", datastore.And{}, ``, nil},
		{"empty or", datastore.Or{}, `1=0`, nil},
		{"or with unrestricted branch", datastore.Or{Children: []datastore.Node{a, datastore.And{}}}, ``, nil},
		{"not nil", datastore.Not{}, `1=0`, nil},
		{"not unrestricted", datastore.Not{Child: datastore.And{}}, `1=0`, nil},
		{"nil children skipped", datastore.And{Children: []datastore.Node{nil, a, nil}}, `"status" = ?`, []any{"open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := c.Where(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	c := pgCompiler(t)

	_, _, err := c.Where(datastore.Eq("nope", 1))
	assert.ErrorIs(t, err, datastore.ErrUnknownField)

	_, _, err = c.Where(datastore.Condition{Field: "id", Op: "wat"})
	assert.ErrorIs(t, err, datastore.ErrInvalidQuery)

	_, _, err = c.Where(datastore.Condition{Field: "id", Op: datastore.OpBetween, Value: 3})
	assert.ErrorIs(t, err, datastore.ErrInvalidQuery)

	_, _, err = c.Where(datastore.Condition{Field: "id", Op: datastore.OpIn, Value: 3})
	assert.ErrorIs(t, err, datastore.ErrInvalidQuery)

	lite := NewSQLCompiler(adapter.NewSQLiteAdapter(), mustMeta[order](t))
	_, _, err = lite.Where(datastore.Regex("status", "^o"))
	assert.ErrorIs(t, err, datastore.ErrNotSupported)
}

func TestCompileILikeFallback(t *testing.T) {
	c := NewSQLCompiler(adapter.NewMySQLAdapter(), mustMeta[order](t))

	sql, args, err := c.Where(datastore.ILike("status", "OPEN"))
	require.NoError(t, err)
	assert.Equal(t, "LOWER(`status`) LIKE LOWER(?)", sql)
	assert.Equal(t, []any{"OPEN"}, args)
}

func TestCompileSelect(t *testing.T) {
	c := pgCompiler(t)
	cols := `"id", "customer_id", "total", "status"`

	tests := []struct {
		name string
		sel  selection
		sql  string
	}{
		{"all", selection{}, `SELECT ` + cols + ` FROM "orders"`},
		{"where", selection{where: datastore.Eq("status", "open")}, `SELECT ` + cols + ` FROM "orders" WHERE "status" = ?`},
		{"order asc", selection{order: "total"}, `SELECT ` + cols + ` FROM "orders" ORDER BY "total" ASC`},
		{"order desc", selection{order: "Total", desc: true}, `SELECT ` + cols + ` FROM "orders" ORDER BY "total" DESC`},
		{"window", selection{order: "total", limit: intPtr(10), offset: intPtr(20)},
			`SELECT ` + cols + ` FROM "orders" ORDER BY "total" ASC LIMIT 10 OFFSET 20`},
		{"window defaults to key order", selection{limit: intPtr(5)},
			`SELECT ` + cols + ` FROM "orders" ORDER BY "id" ASC LIMIT 5`},
		{"empty and is unrestricted", selection{where: datastore.And{}}, `SELECT ` + cols + ` FROM "orders"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := c.Select(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, compiled.SQL)
		})
	}

	_, err := c.Select(selection{order: "nope"})
	assert.ErrorIs(t, err, datastore.ErrUnknownField)
}

func TestCompileCount(t *testing.T) {
	c := pgCompiler(t)

	compiled, err := c.Count(selection{where: datastore.Eq("status", "open"), order: "total"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "orders" WHERE "status" = ?`, compiled.SQL)
	assert.Equal(t, []any{"open"}, compiled.Args)

	compiled, err = c.Count(selection{limit: intPtr(3), offset: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM (SELECT 1 FROM "orders" ORDER BY "id" ASC LIMIT 3 OFFSET 1) AS windowed`, compiled.SQL)
}

func TestCompileExists(t *testing.T) {
	c := pgCompiler(t)

	compiled, err := c.Exists(selection{where: datastore.Gt("total", 5), order: "total"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT EXISTS (SELECT 1 FROM "orders" WHERE "total" > ?)`, compiled.SQL)
	assert.Equal(t, []any{5}, compiled.Args)
}

func TestCompileSelectMySQLOffsetOnly(t *testing.T) {
	c := NewSQLCompiler(adapter.NewMySQLAdapter(), mustMeta[order](t))

	compiled, err := c.Select(selection{offset: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `id`, `customer_id`, `total`, `status` FROM `orders` ORDER BY `id` ASC LIMIT 18446744073709551615 OFFSET 5",
		compiled.SQL)
}
