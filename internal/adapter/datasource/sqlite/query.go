// file: internal/adapter/datasource/sqlite/query.go
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/ja1902/presto-sqlite/internal/observe"
)

var (
	_ port.RecordSetProvider = (*RecordSetProvider)(nil)
	_ port.RecordSet         = (*RecordSet)(nil)
)

// RecordSetProvider 把 Split 与列选择组合成 RecordSet。
type RecordSetProvider struct {
	client connOpener
}

// NewRecordSetProvider 创建 RecordSetProvider。
func NewRecordSetProvider(client connOpener) *RecordSetProvider {
	if client == nil {
		panic("sqlite.NewRecordSetProvider: client 不能为 nil")
	}
	return &RecordSetProvider{client: client}
}

// GetRecordSet 只做参数整理，不访问存储。columns 的顺序即游标字段下标的顺序。
func (p *RecordSetProvider) GetRecordSet(split domain.Split, columns []domain.ColumnDescriptor) (port.RecordSet, error) {
	if split.Table.Table == "" {
		return nil, fmt.Errorf("%w: split 缺少表名", port.ErrScanExecution)
	}
	cols := make([]domain.ColumnDescriptor, len(columns))
	copy(cols, columns)
	return &RecordSet{client: p.client, table: split.Table, columns: cols}, nil
}

// RecordSet 描述一次扫描：哪张表、哪些列。
type RecordSet struct {
	client  connOpener
	table   domain.TableReference
	columns []domain.ColumnDescriptor
}

// ColumnTypes 按请求顺序返回各列的规范类型。
func (rs *RecordSet) ColumnTypes() []domain.CanonicalType {
	types := make([]domain.CanonicalType, len(rs.columns))
	for i, c := range rs.columns {
		types[i] = c.Type
	}
	return types
}

// Cursor 打开连接、预编译并执行扫描语句。
// 任一步失败都会先释放本次已获取的资源 (语句、连接)，再返回 ErrScanExecution。
func (rs *RecordSet) Cursor(ctx context.Context) (port.RecordCursor, error) {
	query, err := buildScanSQL(rs.table.Table, rs.columns)
	if err != nil {
		observe.ScansTotal.WithLabelValues("construct_error").Inc()
		return nil, fmt.Errorf("%w: %w", port.ErrScanExecution, err)
	}

	db, err := rs.client.Open(ctx)
	if err != nil {
		observe.ScansTotal.WithLabelValues("construct_error").Inc()
		return nil, fmt.Errorf("%w: 表 '%s': %w", port.ErrScanExecution, rs.table.Table, err)
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		closeQuietly(db, "connection")
		observe.ScansTotal.WithLabelValues("construct_error").Inc()
		return nil, fmt.Errorf("%w: 预编译 '%s' 失败: %w", port.ErrScanExecution, query, err)
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		closeQuietly(stmt, "statement")
		closeQuietly(db, "connection")
		observe.ScansTotal.WithLabelValues("construct_error").Inc()
		return nil, fmt.Errorf("%w: 执行 '%s' 失败: %w", port.ErrScanExecution, query, err)
	}

	scanWidth := len(rs.columns)
	if scanWidth == 0 {
		scanWidth = 1
	}
	cursor := newCursor(rs.table.Table, rs.columns, scanWidth, rows, stmt, db)
	cursor.logger.Debug("扫描已开始", slog.String("sql", query))
	return cursor, nil
}
