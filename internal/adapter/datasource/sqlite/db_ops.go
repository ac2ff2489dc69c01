// Package sqlite file: internal/adapter/datasource/sqlite/db_ops.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/ja1902/presto-sqlite/internal/observe"
	msqlite "modernc.org/sqlite"
)

// bridgeDriverName 是桥接层独立注册的驱动名，与默认的 "sqlite" 互不干扰。
const bridgeDriverName = "sqlite_bridge"

var registerDriverOnce sync.Once

// registerDriver 在进程内只注册一次驱动，无论创建了多少个 Client。
// 每个新连接都会被切换为 query_only，桥接层只读。
func registerDriver() {
	registerDriverOnce.Do(func() {
		drv := &msqlite.Driver{}
		drv.RegisterConnectionHook(func(conn msqlite.ExecQuerierContext, _ string) error {
			_, err := conn.ExecContext(context.Background(), "PRAGMA query_only = ON", nil)
			return err
		})
		sql.Register(bridgeDriverName, drv)
		slog.Debug("SQLite 驱动注册完成", "component", "sqlite.client", "driver", bridgeDriverName)
	})
}

// 断言 *Client 实现 port.HealthChecker 接口，编译期校验
var _ port.HealthChecker = (*Client)(nil)

// Client 是连接提供者：每次调用 Open 都打开一个全新的存储连接。
type Client struct {
	dbPath     string
	driverName string
	dsn        string
}

// NewClient 根据数据库文件路径创建 Client。
// 路径为空属于配置错误，此时不会访问任何文件。
func NewClient(dbPath string) (*Client, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("%w: sqlite.db 不能为空，请设置为 SQLite 数据库文件路径", port.ErrConfiguration)
	}
	registerDriver()
	return &Client{
		dbPath:     dbPath,
		driverName: bridgeDriverName,
		dsn:        buildDSN(dbPath),
	}, nil
}

// newClientWithDriver 供测试注入其他驱动 (例如 sqlmock)。
func newClientWithDriver(driverName, dsn string) *Client {
	return &Client{dbPath: dsn, driverName: driverName, dsn: dsn}
}

// buildDSN 构造只读 URI。mode=ro 保证文件不存在时不会被意外创建。
func buildDSN(dbPath string) string {
	u := url.URL{Scheme: "file", Opaque: dbPath}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Path 返回存储文件路径。
func (c *Client) Path() string {
	return c.dbPath
}

// Open 打开一个新连接并 Ping，失败时立即返回 ErrConnectivity。调用方负责 Close。
func (c *Client) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(c.driverName, c.dsn)
	if err != nil {
		observe.ConnectionsOpened.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: 打开 '%s' 失败: %w", port.ErrConnectivity, c.dbPath, err)
	}
	// 一个 *sql.DB 只对应一个物理连接
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if errPing := db.PingContext(ctx); errPing != nil {
		_ = db.Close()
		observe.ConnectionsOpened.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: 连接 '%s' (Ping) 失败: %w", port.ErrConnectivity, c.dbPath, errPing)
	}
	observe.ConnectionsOpened.WithLabelValues("ok").Inc()
	return db, nil
}

// HealthCheck 打开并立即关闭一个连接。
func (c *Client) HealthCheck(ctx context.Context) error {
	db, err := c.Open(ctx)
	if err != nil {
		return err
	}
	closeQuietly(db, "healthcheck connection")
	return nil
}

// closeQuietly 释放资源，失败只记录 debug 日志，不向上传递。
func closeQuietly(c interface{ Close() error }, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		slog.Debug("释放资源失败，已忽略", "component", "sqlite", "resource", what, "error", err)
	}
}
