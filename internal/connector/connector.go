// Package connector 把连接提供者、元数据桥、Split 管理与游标组装成一个完整的连接器，
// 并在引擎边界上把所有内部错误翻译为统一的 EngineError。
package connector

import (
	"context"
	"log/slog"

	"github.com/ja1902/presto-sqlite/internal/adapter/datasource/sqlite"
	"github.com/ja1902/presto-sqlite/internal/config"
	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
)

var _ port.Connector = (*Connector)(nil)

// Connector 是 SQLite 连接器实例，一个实例对应一个数据库文件。
type Connector struct {
	client   *sqlite.Client
	metadata *sqlite.Metadata
	splits   *sqlite.SplitManager
	records  *sqlite.RecordSetProvider
	logger   *slog.Logger
}

// New 由引擎下发的属性创建连接器。缺少 sqlite.db 时在访问任何文件之前失败。
func New(props map[string]string) (*Connector, error) {
	cfg, err := config.FromProperties(props)
	if err != nil {
		return nil, port.ToEngineError(err)
	}
	return NewFromConfig(cfg)
}

// NewFromConfig 由已校验的配置创建连接器。
func NewFromConfig(cfg *config.Config) (*Connector, error) {
	client, err := sqlite.NewClient(cfg.SQLite.DB)
	if err != nil {
		return nil, port.ToEngineError(err)
	}
	c := &Connector{
		client:   client,
		metadata: sqlite.NewMetadata(client),
		splits:   sqlite.NewSplitManager(),
		records:  sqlite.NewRecordSetProvider(client),
		logger:   slog.Default().With("component", "connector", "store", client.Path()),
	}
	c.logger.Info("SQLite 连接器已创建")
	return c, nil
}

// Name 返回连接器名称。
func (c *Connector) Name() string {
	return domain.ConnectorName
}

// StorePath 返回数据库文件路径。
func (c *Connector) StorePath() string {
	return c.client.Path()
}

// BeginTransaction 只返回占位句柄，桥接层只读，没有事务语义。
func (c *Connector) BeginTransaction(_ bool) domain.TransactionHandle {
	return domain.Transaction
}

func (c *Connector) ListSchemaNames(ctx context.Context) []string {
	return c.metadata.ListSchemaNames(ctx)
}

func (c *Connector) GetTableHandle(ctx context.Context, schema, table string) (*domain.TableReference, error) {
	ref, err := c.metadata.GetTableHandle(ctx, schema, table)
	return ref, c.translate("get_table_handle", err)
}

func (c *Connector) ListTables(ctx context.Context, schema *string) ([]domain.TableReference, error) {
	tables, err := c.metadata.ListTables(ctx, schema)
	return tables, c.translate("list_tables", err)
}

func (c *Connector) GetColumnHandles(ctx context.Context, table domain.TableReference) ([]domain.ColumnDescriptor, error) {
	cols, err := c.metadata.GetColumnHandles(ctx, table)
	return cols, c.translate("get_column_handles", err)
}

func (c *Connector) GetTableMetadata(ctx context.Context, table domain.TableReference) (*domain.TableMetadata, error) {
	meta, err := c.metadata.GetTableMetadata(ctx, table)
	return meta, c.translate("get_table_metadata", err)
}

func (c *Connector) GetColumnMetadata(column domain.ColumnDescriptor) domain.ColumnMetadata {
	return c.metadata.GetColumnMetadata(column)
}

func (c *Connector) ListTableColumns(ctx context.Context, prefix domain.TablePrefix) (map[domain.TableReference][]domain.ColumnMetadata, error) {
	cols, err := c.metadata.ListTableColumns(ctx, prefix)
	return cols, c.translate("list_table_columns", err)
}

func (c *Connector) GetSplits(ctx context.Context, table domain.TableReference) ([]domain.Split, error) {
	splits, err := c.splits.GetSplits(ctx, table)
	return splits, c.translate("get_splits", err)
}

func (c *Connector) HealthCheck(ctx context.Context) error {
	return c.translate("health_check", c.client.HealthCheck(ctx))
}

// OpenCursor 为 split 创建 RecordSet 并立即打开游标。返回的游标上的错误同样已被翻译。
func (c *Connector) OpenCursor(ctx context.Context, split domain.Split, columns []domain.ColumnDescriptor) (port.RecordCursor, error) {
	rs, err := c.records.GetRecordSet(split, columns)
	if err != nil {
		return nil, c.translate("get_record_set", err)
	}
	cursor, err := rs.Cursor(ctx)
	if err != nil {
		return nil, c.translate("open_cursor", err)
	}
	return &engineCursor{RecordCursor: cursor}, nil
}

func (c *Connector) translate(op string, err error) error {
	if err == nil {
		return nil
	}
	c.logger.Error("连接器操作失败", "op", op, "kind", port.Kind(err), "error", err)
	return port.ToEngineError(err)
}
