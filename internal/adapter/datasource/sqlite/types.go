// Package sqlite file: internal/adapter/datasource/sqlite/types.go
package sqlite

import (
	"strings"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
)

// Affinity 是存储端的底层类型代码 (wire type code)。
// 前五个取值是 SQLite 按声明类型推导出的列亲和性，其余是驱动层可能上报的细分代码。
type Affinity int

const (
	AffinityUnknown Affinity = iota
	AffinityInteger
	AffinityReal
	AffinityNumeric
	AffinityText
	AffinityBlob
	AffinityBigint
	AffinitySmallint
	AffinityTinyint
	AffinityFloat
	AffinityDouble
	AffinityDecimal
	AffinityBoolean
	AffinityBit
)

var affinityNames = map[Affinity]string{
	AffinityInteger:  "INTEGER",
	AffinityReal:     "REAL",
	AffinityNumeric:  "NUMERIC",
	AffinityText:     "TEXT",
	AffinityBlob:     "BLOB",
	AffinityBigint:   "BIGINT",
	AffinitySmallint: "SMALLINT",
	AffinityTinyint:  "TINYINT",
	AffinityFloat:    "FLOAT",
	AffinityDouble:   "DOUBLE",
	AffinityDecimal:  "DECIMAL",
	AffinityBoolean:  "BOOLEAN",
	AffinityBit:      "BIT",
}

func (a Affinity) String() string {
	if name, ok := affinityNames[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// AffinityOf 按 SQLite 文档 (datatype3 §3.1) 的规则从声明类型推导列亲和性。
func AffinityOf(declared string) Affinity {
	upper := strings.ToUpper(declared)
	switch {
	case strings.Contains(upper, "INT"):
		return AffinityInteger
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		return AffinityText
	case upper == "", strings.Contains(upper, "BLOB"):
		return AffinityBlob
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// classifyRule 是按优先级排列的声明类型匹配规则，第一条命中的规则生效。
type classifyRule struct {
	needles []string
	empty   bool
	result  domain.CanonicalType
}

var classifyRules = []classifyRule{
	{needles: []string{"BIGINT"}, result: domain.TypeBigint},
	{needles: []string{"INT"}, result: domain.TypeInteger},
	{needles: []string{"REAL", "FLOAT", "DOUBLE"}, result: domain.TypeDouble},
	{needles: []string{"BOOL"}, result: domain.TypeBoolean},
	{needles: []string{"CHAR", "TEXT", "CLOB"}, result: domain.TypeVarchar},
	{needles: []string{"BLOB"}, empty: true, result: domain.TypeVarchar},
	{needles: []string{"NUMERIC", "DECIMAL"}, result: domain.TypeDouble},
}

// Classify 把列的声明类型与底层类型代码映射为引擎规范类型。
// 对任意输入都有返回值：先按声明类型 (大小写不敏感) 匹配规则表，
// 都不命中时按类型代码回退，仍无法识别的一律视为文本。
// 类型只取决于声明，绝不根据抽样数据推断。
func Classify(declared string, code Affinity) domain.CanonicalType {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	for _, rule := range classifyRules {
		if rule.empty && upper == "" {
			return rule.result
		}
		for _, needle := range rule.needles {
			if strings.Contains(upper, needle) {
				return rule.result
			}
		}
	}
	return classifyCode(code)
}

// classifyCode 是类型代码到规范类型的固定映射。
func classifyCode(code Affinity) domain.CanonicalType {
	switch code {
	case AffinityBigint:
		return domain.TypeBigint
	case AffinityInteger, AffinitySmallint, AffinityTinyint:
		return domain.TypeInteger
	case AffinityReal, AffinityFloat, AffinityDouble, AffinityDecimal:
		return domain.TypeDouble
	case AffinityBoolean, AffinityBit:
		return domain.TypeBoolean
	default:
		return domain.TypeVarchar
	}
}
