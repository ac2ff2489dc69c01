// Package sqlite file: internal/adapter/datasource/sqlite/helpers.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
)

// 目录查询语句。sqlite_ 前缀的内部对象不对外暴露。
const (
	listTablesSQL  = `SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`
	findTableSQL   = `SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE ORDER BY name = ? DESC LIMIT 1`
	listColumnsSQL = `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`
)

// catalogColumn 是目录中读到的一列原始信息。
type catalogColumn struct {
	name     string
	declared string
}

// quoteIdent 用双引号包裹标识符，内部的双引号加倍转义。
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildScanSQL 构建扫描语句: SELECT "c1", "c2" FROM "t"。
// 不带任何过滤、排序或 LIMIT，这些都由引擎在上层完成。
// 不请求任何列时 (例如 count(*)) 每行只选出常量 1。
func buildScanSQL(tableName string, columns []domain.ColumnDescriptor) (string, error) {
	if tableName == "" {
		return "", errors.New("表名不能为空 (buildScanSQL)")
	}
	selectList := "1"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			if c.Name == "" {
				return "", fmt.Errorf("第 %d 个查询字段的列名为空 (buildScanSQL)", i)
			}
			quoted[i] = quoteIdent(c.Name)
		}
		selectList = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(tableName))
	return sb.String(), nil
}

// listTableNames 返回数据库中所有用户表和视图的名称，按名称排序。
func listTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, listTablesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("扫描表名失败: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// findTable 按名称 (大小写不敏感) 查找表或视图，返回存储中的实际拼写。
// 同时存在仅大小写不同的多个对象时优先精确匹配。
func findTable(ctx context.Context, db *sql.DB, name string) (string, bool, error) {
	var actual string
	err := db.QueryRowContext(ctx, findTableSQL, name, name).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return actual, true, nil
}

// listColumns 按目录顺序返回指定表的所有列及其声明类型。
func listColumns(ctx context.Context, db *sql.DB, tableName string) ([]catalogColumn, error) {
	rows, err := db.QueryContext(ctx, listColumnsSQL, tableName)
	if err != nil {
		return nil, fmt.Errorf("pragma_table_info for table %q 失败: %w", tableName, err)
	}
	defer rows.Close()

	var cols []catalogColumn
	for rows.Next() {
		var (
			colName  string
			declared sql.NullString
		)
		if err := rows.Scan(&colName, &declared); err != nil {
			return nil, fmt.Errorf("扫描表 %q 的列信息失败: %w", tableName, err)
		}
		cols = append(cols, catalogColumn{name: colName, declared: declared.String})
	}
	return cols, rows.Err()
}
