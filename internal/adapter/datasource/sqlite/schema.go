// file: internal/adapter/datasource/sqlite/schema.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"golang.org/x/sync/errgroup"
)

// GetTableHandle 查找表或视图。schema 不是固定 schema 时直接返回 nil，不打开连接。
func (m *Metadata) GetTableHandle(ctx context.Context, schema, table string) (*domain.TableReference, error) {
	if schema != domain.DefaultSchema {
		return nil, nil
	}

	var ref *domain.TableReference
	err := m.withConn(ctx, "get_table_handle", func(db *sql.DB) error {
		actual, found, errFind := findTable(ctx, db, table)
		if errFind != nil {
			return fmt.Errorf("%w: 查找表 '%s' 失败: %w", port.ErrCatalogQuery, table, errFind)
		}
		if found {
			ref = &domain.TableReference{Schema: domain.DefaultSchema, Table: actual}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// ListTables 列出所有表和视图。schema 指向其他命名空间时返回空结果，不打开连接。
func (m *Metadata) ListTables(ctx context.Context, schema *string) ([]domain.TableReference, error) {
	if schema != nil && *schema != domain.DefaultSchema {
		return []domain.TableReference{}, nil
	}

	tables := make([]domain.TableReference, 0)
	err := m.withConn(ctx, "list_tables", func(db *sql.DB) error {
		names, errList := listTableNames(ctx, db)
		if errList != nil {
			return fmt.Errorf("%w: 列出表失败: %w", port.ErrCatalogQuery, errList)
		}
		for _, name := range names {
			tables = append(tables, domain.TableReference{Schema: domain.DefaultSchema, Table: name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// GetColumnHandles 通过目录内省枚举列，逐列做类型映射，并按枚举顺序分配 0..n-1 的序号。
// 声明类型为空或无法识别不会导致失败。
func (m *Metadata) GetColumnHandles(ctx context.Context, table domain.TableReference) ([]domain.ColumnDescriptor, error) {
	descriptors := make([]domain.ColumnDescriptor, 0)
	err := m.withConn(ctx, "get_column_handles", func(db *sql.DB) error {
		cols, errCols := listColumns(ctx, db, table.Table)
		if errCols != nil {
			return fmt.Errorf("%w: 获取表 '%s' 的列失败: %w", port.ErrCatalogQuery, table.Table, errCols)
		}
		for ordinal, col := range cols {
			descriptors = append(descriptors, domain.ColumnDescriptor{
				Name:            col.name,
				Type:            Classify(col.declared, AffinityOf(col.declared)),
				OrdinalPosition: ordinal,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descriptors, nil
}

// GetTableMetadata 返回表及其全部列的元数据。
func (m *Metadata) GetTableMetadata(ctx context.Context, table domain.TableReference) (*domain.TableMetadata, error) {
	descriptors, err := m.GetColumnHandles(ctx, table)
	if err != nil {
		return nil, err
	}
	return &domain.TableMetadata{
		Table:   domain.TableReference{Schema: table.Schema, Table: table.Table},
		Columns: columnsMetadata(descriptors),
	}, nil
}

// GetColumnMetadata 不访问存储，直接由列描述符得到。
func (m *Metadata) GetColumnMetadata(column domain.ColumnDescriptor) domain.ColumnMetadata {
	return column.Metadata()
}

// ListTableColumns 列出匹配前缀的所有表的列。
// 每张表的列信息在独立连接上并发获取，并发数受 fetchLimit 限制。
func (m *Metadata) ListTableColumns(ctx context.Context, prefix domain.TablePrefix) (map[domain.TableReference][]domain.ColumnMetadata, error) {
	var schemaFilter *string
	if prefix.Schema != "" {
		schemaFilter = &prefix.Schema
	}
	tables, err := m.ListTables(ctx, schemaFilter)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.TableReference, 0, len(tables))
	for _, t := range tables {
		if prefix.Table == "" || t.Table == prefix.Table {
			matched = append(matched, t)
		}
	}

	columns := make([][]domain.ColumnMetadata, len(matched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.fetchLimit)
	for i, t := range matched {
		g.Go(func() error {
			descriptors, errCols := m.GetColumnHandles(gctx, t)
			if errCols != nil {
				return errCols
			}
			columns[i] = columnsMetadata(descriptors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[domain.TableReference][]domain.ColumnMetadata, len(matched))
	for i, t := range matched {
		result[t] = columns[i]
	}
	return result, nil
}

func columnsMetadata(descriptors []domain.ColumnDescriptor) []domain.ColumnMetadata {
	out := make([]domain.ColumnMetadata, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Metadata()
	}
	return out
}
