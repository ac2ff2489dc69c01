// Package sqlite — SQLite 连接器桥接层：元数据发现、类型映射与行游标
// internal/adapter/datasource/sqlite/manager.go
package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/ja1902/presto-sqlite/internal/observe"
)

// 断言 *Metadata 实现 port.Metadata 接口，编译期校验
var _ port.Metadata = (*Metadata)(nil)

// defaultColumnFetchLimit 是 ListTableColumns 并发拉取列信息时的最大并发连接数。
const defaultColumnFetchLimit = 4

// connOpener 是 Metadata 依赖的连接提供能力，*Client 即为其实现。
type connOpener interface {
	Open(ctx context.Context) (*sql.DB, error)
}

// Metadata 是元数据桥：通过连接提供者查询目录，再经类型映射得到列描述符。
// 每次调用都打开新连接并在返回前关闭，不缓存任何结果。
type Metadata struct {
	client     connOpener
	fetchLimit int
	logger     *slog.Logger
}

// NewMetadata 创建一个新的 Metadata 实例。
func NewMetadata(client connOpener) *Metadata {
	if client == nil {
		panic("sqlite.NewMetadata: client 不能为 nil")
	}
	return &Metadata{
		client:     client,
		fetchLimit: defaultColumnFetchLimit,
		logger:     slog.Default().With("component", "sqlite.metadata"),
	}
}

// ListSchemaNames 只返回一个固定的 schema，桥接层没有更深的命名空间层级。
func (m *Metadata) ListSchemaNames(_ context.Context) []string {
	return []string{domain.DefaultSchema}
}

// withConn 打开连接执行 fn，并保证在任何返回路径上关闭连接。
func (m *Metadata) withConn(ctx context.Context, op string, fn func(db *sql.DB) error) (err error) {
	defer func() {
		observe.MetadataCalls.WithLabelValues(op, port.Kind(err)).Inc()
	}()

	db, err := m.client.Open(ctx)
	if err != nil {
		m.logger.Warn("打开存储连接失败", "op", op, "error", err)
		return err
	}
	defer closeQuietly(db, op+" connection")

	return fn(db)
}
