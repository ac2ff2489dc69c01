// Package domain file: internal/core/domain/connector_models.go
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// ConnectorName 是连接器在引擎侧注册时使用的名称。
	ConnectorName = "sqlite"
	// DefaultSchema 是桥接层对外暴露的唯一 schema。
	DefaultSchema = "default"
)

// TableReference 指向桥接层中的一张表或视图。
type TableReference struct {
	Schema string `json:"schemaName"`
	Table  string `json:"tableName"`
}

func (r TableReference) String() string {
	return r.Schema + "." + r.Table
}

// ColumnDescriptor 是引擎可持久化的列引用 (column handle)。
// 字段顺序即序列化顺序，引擎可能把它嵌入缓存的执行计划中，修改前务必考虑兼容性。
type ColumnDescriptor struct {
	Name            string        `json:"columnName"`
	Type            CanonicalType `json:"type"`
	OrdinalPosition int           `json:"ordinalPosition"`
}

// String 返回形如 sqlite:id:integer 的调试表示。
func (d ColumnDescriptor) String() string {
	return ConnectorName + ":" + d.Name + ":" + d.Type.String()
}

// SameColumn 按列名判断两个描述符是否指向同一列。
func (d ColumnDescriptor) SameColumn(other ColumnDescriptor) bool {
	return d.Name == other.Name
}

// Metadata 返回该列面向引擎的元数据视图。
func (d ColumnDescriptor) Metadata() ColumnMetadata {
	return ColumnMetadata{Name: d.Name, Type: d.Type}
}

// EncodeColumnHandle 把列描述符编码为稳定的 JSON 字节序列。
func EncodeColumnHandle(d ColumnDescriptor) ([]byte, error) {
	if d.Name == "" {
		return nil, errors.New("列名不能为空")
	}
	return json.Marshal(d)
}

// DecodeColumnHandle 解析 EncodeColumnHandle 的输出，拒绝未知字段与未知类型。
func DecodeColumnHandle(data []byte) (ColumnDescriptor, error) {
	var d ColumnDescriptor
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return ColumnDescriptor{}, fmt.Errorf("解析列描述符失败: %w", err)
	}
	if d.Name == "" {
		return ColumnDescriptor{}, errors.New("解析列描述符失败: 缺少 columnName")
	}
	if !d.Type.Valid() {
		return ColumnDescriptor{}, errors.New("解析列描述符失败: 缺少 type")
	}
	return d, nil
}

// ColumnHandleMap 以列名为键构建列描述符映射，序号保持不变。
func ColumnHandleMap(columns []ColumnDescriptor) map[string]ColumnDescriptor {
	handles := make(map[string]ColumnDescriptor, len(columns))
	for _, c := range columns {
		handles[c.Name] = c
	}
	return handles
}

// ColumnMetadata 是引擎侧看到的列元数据。
type ColumnMetadata struct {
	Name string        `json:"name"`
	Type CanonicalType `json:"type"`
}

// TableMetadata 汇总一张表及其全部列。
type TableMetadata struct {
	Table   TableReference   `json:"table"`
	Columns []ColumnMetadata `json:"columns"`
}

// TablePrefix 用于 ListTableColumns 的过滤条件，空字符串表示不过滤。
type TablePrefix struct {
	Schema string
	Table  string
}

// Split 描述一个扫描单元。当前实现中一张表恰好对应一个 Split。
type Split struct {
	Table TableReference `json:"table"`
}

// TransactionHandle 是只读扫描场景下的事务句柄占位。
type TransactionHandle struct{}

// Transaction 是全局唯一的事务句柄实例。
var Transaction = TransactionHandle{}
