// Package port file: internal/core/port/datasource.go
package port

import (
	"context"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
)

// Metadata 是元数据发现能力：schema、表、列。
// 每次调用都重新查询存储，不做缓存。
type Metadata interface {
	// ListSchemaNames 返回桥接层暴露的全部 schema
	ListSchemaNames(ctx context.Context) []string

	// GetTableHandle 查找表或视图；不存在时返回 nil, nil
	GetTableHandle(ctx context.Context, schema, table string) (*domain.TableReference, error)

	// ListTables 列出表；schema 为 nil 表示不过滤
	ListTables(ctx context.Context, schema *string) ([]domain.TableReference, error)

	// GetColumnHandles 按目录顺序返回列描述符，序号从 0 连续递增
	GetColumnHandles(ctx context.Context, table domain.TableReference) ([]domain.ColumnDescriptor, error)

	// GetTableMetadata 返回表及其全部列的元数据
	GetTableMetadata(ctx context.Context, table domain.TableReference) (*domain.TableMetadata, error)

	// GetColumnMetadata 从列描述符得到列元数据，不访问存储
	GetColumnMetadata(column domain.ColumnDescriptor) domain.ColumnMetadata

	// ListTableColumns 按前缀列出所有匹配表的列
	ListTableColumns(ctx context.Context, prefix domain.TablePrefix) (map[domain.TableReference][]domain.ColumnMetadata, error)
}

// SplitManager 为表生成扫描单元。
type SplitManager interface {
	GetSplits(ctx context.Context, table domain.TableReference) ([]domain.Split, error)
}

// RecordCursor 是单次、只进、可关闭的行流。
// 字段下标指构造时请求的列顺序，而非存储中的原生列顺序。
// 下标越界时 Type 返回零值 CanonicalType，其余读取方法返回 ErrRead。
type RecordCursor interface {
	Advance() (bool, error)
	Type(field int) domain.CanonicalType
	Boolean(field int) (bool, error)
	Long(field int) (int64, error)
	Double(field int) (float64, error)
	Text(field int) (string, error)
	IsNull(field int) (bool, error)
	Object(field int) (any, error)
	CompletedBytes() int64
	ReadTimeNanos() int64

	// Close 幂等，且永远返回 nil；释放失败只记录日志。
	Close() error
}

// RecordSet 描述一次扫描要读取的列，并负责创建游标。
type RecordSet interface {
	ColumnTypes() []domain.CanonicalType
	Cursor(ctx context.Context) (RecordCursor, error)
}

// RecordSetProvider 把 Split 与列选择组合成 RecordSet。
type RecordSetProvider interface {
	GetRecordSet(split domain.Split, columns []domain.ColumnDescriptor) (RecordSet, error)
}

// HealthChecker 检查存储是否可达。
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Connector 是连接器对外暴露的完整能力，传输层只依赖它。
// 实现方返回的错误都已翻译为 *EngineError。
type Connector interface {
	Metadata
	SplitManager
	HealthChecker

	// OpenCursor 为一个 Split 打开游标，columns 的顺序即字段下标顺序
	OpenCursor(ctx context.Context, split domain.Split, columns []domain.ColumnDescriptor) (RecordCursor, error)
}
