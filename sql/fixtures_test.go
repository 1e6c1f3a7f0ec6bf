package sqlstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"datastore"
	"datastore/sql/adapter"
)

type customer struct {
	ID     int64   `db:"id"`
	Name   string  `db:"name"`
	Email  *string `db:"email"`
	Orders []order `db:"-"`
}

func (customer) TableName() string { return "customers" }

func (customer) Navigations() []datastore.Navigation[customer] {
	return []datastore.Navigation[customer]{
		HasMany[customer, order]("Orders", "customer_id", func(c *customer, orders []order) { c.Orders = orders }),
	}
}

type order struct {
	ID         int64     `db:"id"`
	CustomerID int64     `db:"customer_id"`
	Total      float64   `db:"total"`
	Status     string    `db:"status"`
	Customer   *customer `db:"-"`
	Items      []item    `db:"-"`
}

func (order) TableName() string { return "orders" }

func (order) Navigations() []datastore.Navigation[order] {
	return []datastore.Navigation[order]{
		BelongsTo[order, customer]("Customer", "customer_id", func(o *order, c *customer) { o.Customer = c }),
		HasMany[order, item]("Items", "order_id", func(o *order, items []item) { o.Items = items }),
	}
}

type item struct {
	ID      int64  `db:"id"`
	OrderID int64  `db:"order_id"`
	SKU     string `db:"sku"`
	Qty     int    `db:"qty"`
}

func (item) TableName() string { return "items" }

// tag has a natural string key.
type tag struct {
	Code  string `db:"code"`
	Label string `db:"label"`
}

func (tag) TableName() string { return "tags" }
func (tag) KeyColumn() string { return "code" }

type event struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

func (event) TableName() string { return "events" }

const schema = `
CREATE TABLE customers (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	name  TEXT NOT NULL UNIQUE,
	email TEXT
);
CREATE TABLE orders (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	total       REAL NOT NULL,
	status      TEXT NOT NULL
);
CREATE TABLE items (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id INTEGER NOT NULL REFERENCES orders(id),
	sku      TEXT NOT NULL,
	qty      INTEGER NOT NULL
);
CREATE TABLE tags (
	code  TEXT PRIMARY KEY,
	label TEXT NOT NULL
);
CREATE TABLE events (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);`

func strPtr(s string) *string { return &s }

// newSQLiteService opens a private in-memory database with the test schema.
func newSQLiteService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()

	cfg := datastore.NewConfig(datastore.InMemorySQLiteOptions()...)
	svc, err := Open(context.Background(), adapter.NewSQLiteAdapter(), &cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	require.NoError(t, svc.ExecuteSQL(context.Background(), schema))
	return svc
}

// seed inserts rows directly, bypassing the change tracker.
func seed(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO customers (id, name, email) VALUES (1, 'ada', 'ada@example.com'), (2, 'bob', NULL), (3, 'cy', NULL)`,
		`INSERT INTO orders (id, customer_id, total, status) VALUES
			(10, 1, 120.0, 'open'),
			(11, 1, 35.5, 'shipped'),
			(12, 2, 80.0, 'open'),
			(13, 2, 15.0, 'cancelled')`,
		`INSERT INTO items (id, order_id, sku, qty) VALUES (100, 10, 'A-1', 2), (101, 10, 'B-2', 1), (102, 12, 'A-1', 5)`,
		`INSERT INTO tags (code, label) VALUES ('new', 'New'), ('hot', 'Hot')`,
	}
	for _, stmt := range stmts {
		require.NoError(t, svc.ExecuteSQL(ctx, stmt))
	}
}

// newMockSession returns a session over sqlmock using the given dialect.
// Statements are matched exactly.
func newMockSession(t *testing.T, adpt adapter.Adapter, opts ...SessionOption) (*Session, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewSession(db, adpt, opts...), mock
}

func mustMeta[T datastore.Entity](t *testing.T) *entityMeta {
	t.Helper()
	meta, err := metaFor[T]()
	require.NoError(t, err)
	return meta
}
