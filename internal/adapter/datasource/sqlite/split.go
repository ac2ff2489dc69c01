// file: internal/adapter/datasource/sqlite/split.go
package sqlite

import (
	"context"
	"fmt"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
)

var _ port.SplitManager = (*SplitManager)(nil)

// SplitManager 为每张表生成恰好一个 Split，表内不再切分。
type SplitManager struct{}

// NewSplitManager 创建 SplitManager。
func NewSplitManager() *SplitManager {
	return &SplitManager{}
}

// GetSplits 返回覆盖整张表的唯一 Split。
func (s *SplitManager) GetSplits(_ context.Context, table domain.TableReference) ([]domain.Split, error) {
	if table.Table == "" {
		return nil, fmt.Errorf("%w: 表名不能为空", port.ErrConfiguration)
	}
	return []domain.Split{{Table: table}}, nil
}
