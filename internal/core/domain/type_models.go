// Package domain file: internal/core/domain/type_models.go
package domain

import "fmt"

// CanonicalType 是查询引擎自身的类型体系 (封闭枚举)，所有存储端类型最终都映射到这里。
type CanonicalType uint8

const (
	TypeInteger CanonicalType = iota + 1
	TypeBigint
	TypeDouble
	TypeBoolean
	// TypeVarchar 即文本类型，也是所有无法识别类型的兜底。
	TypeVarchar
)

var canonicalTypeIDs = map[CanonicalType]string{
	TypeInteger: "integer",
	TypeBigint:  "bigint",
	TypeDouble:  "double",
	TypeBoolean: "boolean",
	TypeVarchar: "varchar",
}

// AllCanonicalTypes 按枚举顺序返回全部规范类型。
func AllCanonicalTypes() []CanonicalType {
	return []CanonicalType{TypeInteger, TypeBigint, TypeDouble, TypeBoolean, TypeVarchar}
}

// String 返回引擎侧的类型标识符，例如 "bigint"。
func (t CanonicalType) String() string {
	if id, ok := canonicalTypeIDs[t]; ok {
		return id
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Valid 判断该值是否属于封闭枚举。
func (t CanonicalType) Valid() bool {
	_, ok := canonicalTypeIDs[t]
	return ok
}

// ParseCanonicalType 把类型标识符解析回 CanonicalType。
func ParseCanonicalType(id string) (CanonicalType, error) {
	for t, candidate := range canonicalTypeIDs {
		if candidate == id {
			return t, nil
		}
	}
	return 0, fmt.Errorf("未知的规范类型标识符: %q", id)
}

// MarshalText 让 CanonicalType 以标识符形式出现在 JSON 中。
func (t CanonicalType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("无法序列化未知的规范类型 %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText 是 MarshalText 的逆操作。
func (t *CanonicalType) UnmarshalText(text []byte) error {
	parsed, err := ParseCanonicalType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
