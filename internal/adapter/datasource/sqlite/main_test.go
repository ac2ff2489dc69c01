// file: internal/adapter/datasource/sqlite/main_test.go
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// ============================================================================
//  共享测试辅助工具
// ============================================================================

// createTestDB 在 dir 下创建数据库文件并执行建表语句，返回文件路径。
// 写连接在返回前关闭，被测代码只会以只读方式打开它。
func createTestDB(t *testing.T, dir, filename string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(dir, filename)

	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err = db.Exec(stmt)
		require.NoError(t, err, "执行语句失败: %s", stmt)
	}
	return path
}

// newTestClient 基于 createTestDB 创建 Client。
func newTestClient(t *testing.T, stmts ...string) *Client {
	t.Helper()
	path := createTestDB(t, t.TempDir(), "bridge.db", stmts...)
	client, err := NewClient(path)
	require.NoError(t, err)
	return client
}

// countingOpener 记录 Open 被调用的次数。
type countingOpener struct {
	inner connOpener
	opens atomic.Int32
}

func (c *countingOpener) Open(ctx context.Context) (*sql.DB, error) {
	c.opens.Add(1)
	return c.inner.Open(ctx)
}
