// file: internal/adapter/datasource/sqlite/db_ops_test.go
package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RejectsEmptyPath(t *testing.T) {
	for _, path := range []string{"", "   "} {
		client, err := NewClient(path)
		require.Error(t, err)
		assert.Nil(t, client)
		assert.ErrorIs(t, err, port.ErrConfiguration)
	}
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t,
		"file:/data/store.db?_pragma=busy_timeout%285000%29&mode=ro",
		buildDSN("/data/store.db"),
	)
}

func TestClient_OpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	client, err := NewClient(path)
	require.NoError(t, err)

	db, err := client.Open(context.Background())
	require.Error(t, err)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, port.ErrConnectivity)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "只读打开不应创建数据库文件")
}

func TestClient_OpenIsReadOnly(t *testing.T) {
	client := newTestClient(t, `CREATE TABLE t (id INTEGER)`)
	assert.Equal(t, filepath.Base(client.Path()), "bridge.db")

	db, err := client.Open(context.Background())
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 0, n)

	_, err = db.Exec(`INSERT INTO t (id) VALUES (1)`)
	assert.Error(t, err, "桥接层连接必须是只读的")
}

func TestClient_HealthCheck(t *testing.T) {
	client := newTestClient(t, `CREATE TABLE t (id INTEGER)`)
	assert.NoError(t, client.HealthCheck(context.Background()))

	missing, err := NewClient(filepath.Join(t.TempDir(), "nope.db"))
	require.NoError(t, err)
	assert.ErrorIs(t, missing.HealthCheck(context.Background()), port.ErrConnectivity)
}
