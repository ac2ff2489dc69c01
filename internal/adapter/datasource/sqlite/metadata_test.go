// file: internal/adapter/datasource/sqlite/metadata_test.go
package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metadataFixture = []string{
	`CREATE TABLE orders (id INTEGER PRIMARY KEY, amount REAL, note TEXT, paid BOOLEAN, ref BIGINT, raw BLOB, untyped)`,
	`CREATE TABLE "Mixed Case" ("weird ""col""" VARCHAR(10))`,
	`CREATE VIEW big_orders AS SELECT id, amount FROM orders WHERE amount > 100`,
	`CREATE INDEX idx_orders_amount ON orders (amount)`,
}

func newFixtureMetadata(t *testing.T) (*Metadata, *countingOpener) {
	t.Helper()
	opener := &countingOpener{inner: newTestClient(t, metadataFixture...)}
	return NewMetadata(opener), opener
}

func TestMetadata_ListSchemaNames(t *testing.T) {
	m, opener := newFixtureMetadata(t)
	assert.Equal(t, []string{"default"}, m.ListSchemaNames(context.Background()))
	assert.Zero(t, opener.opens.Load())
}

func TestMetadata_GetTableHandle(t *testing.T) {
	ctx := context.Background()
	m, opener := newFixtureMetadata(t)

	t.Run("table", func(t *testing.T) {
		ref, err := m.GetTableHandle(ctx, domain.DefaultSchema, "orders")
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, domain.TableReference{Schema: "default", Table: "orders"}, *ref)
	})

	t.Run("view", func(t *testing.T) {
		ref, err := m.GetTableHandle(ctx, domain.DefaultSchema, "big_orders")
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, "big_orders", ref.Table)
	})

	t.Run("case insensitive returns stored spelling", func(t *testing.T) {
		ref, err := m.GetTableHandle(ctx, domain.DefaultSchema, "mixed case")
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, "Mixed Case", ref.Table)
	})

	t.Run("missing", func(t *testing.T) {
		ref, err := m.GetTableHandle(ctx, domain.DefaultSchema, "nope")
		require.NoError(t, err)
		assert.Nil(t, ref)
	})

	t.Run("index is not a table", func(t *testing.T) {
		ref, err := m.GetTableHandle(ctx, domain.DefaultSchema, "idx_orders_amount")
		require.NoError(t, err)
		assert.Nil(t, ref)
	})

	t.Run("schema mismatch opens no connection", func(t *testing.T) {
		before := opener.opens.Load()
		ref, err := m.GetTableHandle(ctx, "other", "orders")
		require.NoError(t, err)
		assert.Nil(t, ref)
		assert.Equal(t, before, opener.opens.Load())
	})
}

func TestMetadata_ListTables(t *testing.T) {
	ctx := context.Background()
	m, opener := newFixtureMetadata(t)

	want := []domain.TableReference{
		{Schema: "default", Table: "Mixed Case"},
		{Schema: "default", Table: "big_orders"},
		{Schema: "default", Table: "orders"},
	}

	all, err := m.ListTables(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, want, all)

	schema := domain.DefaultSchema
	filtered, err := m.ListTables(ctx, &schema)
	require.NoError(t, err)
	assert.Equal(t, want, filtered)

	before := opener.opens.Load()
	other := "information_schema"
	none, err := m.ListTables(ctx, &other)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
	assert.Equal(t, before, opener.opens.Load(), "其他 schema 不应打开连接")
}

func TestMetadata_GetColumnHandles(t *testing.T) {
	ctx := context.Background()
	m, _ := newFixtureMetadata(t)

	cols, err := m.GetColumnHandles(ctx, domain.TableReference{Schema: "default", Table: "orders"})
	require.NoError(t, err)

	want := []domain.ColumnDescriptor{
		{Name: "id", Type: domain.TypeInteger, OrdinalPosition: 0},
		{Name: "amount", Type: domain.TypeDouble, OrdinalPosition: 1},
		{Name: "note", Type: domain.TypeVarchar, OrdinalPosition: 2},
		{Name: "paid", Type: domain.TypeBoolean, OrdinalPosition: 3},
		{Name: "ref", Type: domain.TypeBigint, OrdinalPosition: 4},
		{Name: "raw", Type: domain.TypeVarchar, OrdinalPosition: 5},
		{Name: "untyped", Type: domain.TypeVarchar, OrdinalPosition: 6},
	}
	assert.Equal(t, want, cols)

	handles := domain.ColumnHandleMap(cols)
	require.Len(t, handles, len(cols))
	for i, c := range cols {
		assert.Equal(t, i, handles[c.Name].OrdinalPosition)
	}

	// 再次调用得到相同结果
	again, err := m.GetColumnHandles(ctx, domain.TableReference{Schema: "default", Table: "orders"})
	require.NoError(t, err)
	assert.Equal(t, cols, again)

	quoted, err := m.GetColumnHandles(ctx, domain.TableReference{Schema: "default", Table: "Mixed Case"})
	require.NoError(t, err)
	require.Len(t, quoted, 1)
	assert.Equal(t, `weird "col"`, quoted[0].Name)
	assert.Equal(t, domain.TypeVarchar, quoted[0].Type)

	missing, err := m.GetColumnHandles(ctx, domain.TableReference{Schema: "default", Table: "nope"})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMetadata_TableAndColumnMetadata(t *testing.T) {
	ctx := context.Background()
	m, _ := newFixtureMetadata(t)

	ref := domain.TableReference{Schema: "default", Table: "big_orders"}
	meta, err := m.GetTableMetadata(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, meta.Table)
	assert.Equal(t, []domain.ColumnMetadata{
		{Name: "id", Type: domain.TypeInteger},
		{Name: "amount", Type: domain.TypeDouble},
	}, meta.Columns)

	col := domain.ColumnDescriptor{Name: "paid", Type: domain.TypeBoolean, OrdinalPosition: 3}
	assert.Equal(t, domain.ColumnMetadata{Name: "paid", Type: domain.TypeBoolean}, m.GetColumnMetadata(col))
}

func TestMetadata_ListTableColumns(t *testing.T) {
	ctx := context.Background()
	m, opener := newFixtureMetadata(t)

	all, err := m.ListTableColumns(ctx, domain.TablePrefix{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Len(t, all[domain.TableReference{Schema: "default", Table: "orders"}], 7)
	assert.Len(t, all[domain.TableReference{Schema: "default", Table: "big_orders"}], 2)

	one, err := m.ListTableColumns(ctx, domain.TablePrefix{Schema: "default", Table: "big_orders"})
	require.NoError(t, err)
	require.Len(t, one, 1)

	before := opener.opens.Load()
	none, err := m.ListTableColumns(ctx, domain.TablePrefix{Schema: "other"})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, before, opener.opens.Load())
}

func TestMetadata_CatalogQueryFailure(t *testing.T) {
	const dsn = "sqlmock_metadata_catalog_failure"
	mockDB, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mockDB.Close()

	m := NewMetadata(newClientWithDriver("sqlmock", dsn))
	ctx := context.Background()

	mock.ExpectQuery(listTablesSQL).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectClose()
	_, err = m.ListTables(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrCatalogQuery)
	assert.Contains(t, err.Error(), "disk I/O error")

	mock.ExpectQuery(listColumnsSQL).WithArgs("orders").WillReturnError(errors.New("malformed schema"))
	mock.ExpectClose()
	_, err = m.GetColumnHandles(ctx, domain.TableReference{Schema: "default", Table: "orders"})
	assert.ErrorIs(t, err, port.ErrCatalogQuery)

	mock.ExpectQuery(findTableSQL).WithArgs("orders", "orders").WillReturnError(errors.New("locked"))
	mock.ExpectClose()
	ref, err := m.GetTableHandle(ctx, domain.DefaultSchema, "orders")
	assert.Nil(t, ref)
	assert.ErrorIs(t, err, port.ErrCatalogQuery)

	// 三次失败各自关闭了自己的连接
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadata_ConnectivityFailure(t *testing.T) {
	client, err := NewClient(t.TempDir() + "/absent.db")
	require.NoError(t, err)
	m := NewMetadata(client)

	_, err = m.ListTables(context.Background(), nil)
	assert.ErrorIs(t, err, port.ErrConnectivity)

	_, err = m.GetColumnHandles(context.Background(), domain.TableReference{Schema: "default", Table: "t"})
	assert.ErrorIs(t, err, port.ErrConnectivity)
}
