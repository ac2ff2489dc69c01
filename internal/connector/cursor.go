package connector

import (
	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
)

// engineCursor 包装游标，把读取错误翻译为 EngineError。
type engineCursor struct {
	port.RecordCursor
}

func (e *engineCursor) Advance() (bool, error) {
	ok, err := e.RecordCursor.Advance()
	return ok, port.ToEngineError(err)
}

func (e *engineCursor) Boolean(field int) (bool, error) {
	v, err := e.RecordCursor.Boolean(field)
	return v, port.ToEngineError(err)
}

func (e *engineCursor) Long(field int) (int64, error) {
	v, err := e.RecordCursor.Long(field)
	return v, port.ToEngineError(err)
}

func (e *engineCursor) Double(field int) (float64, error) {
	v, err := e.RecordCursor.Double(field)
	return v, port.ToEngineError(err)
}

func (e *engineCursor) Text(field int) (string, error) {
	v, err := e.RecordCursor.Text(field)
	return v, port.ToEngineError(err)
}

func (e *engineCursor) IsNull(field int) (bool, error) {
	v, err := e.RecordCursor.IsNull(field)
	return v, port.ToEngineError(err)
}

func (e *engineCursor) Object(field int) (any, error) {
	v, err := e.RecordCursor.Object(field)
	return v, port.ToEngineError(err)
}

// ColumnTypes 按顺序取出列描述符的规范类型。
func ColumnTypes(columns []domain.ColumnDescriptor) []domain.CanonicalType {
	types := make([]domain.CanonicalType, len(columns))
	for i, c := range columns {
		types[i] = c.Type
	}
	return types
}

// ReadRow 按列类型用对应的访问器读出游标当前行，NULL 字段写入 nil。
// dst 的长度必须与 types 一致。
func ReadRow(cursor port.RecordCursor, types []domain.CanonicalType, dst []any) error {
	for i, t := range types {
		null, err := cursor.IsNull(i)
		if err != nil {
			return err
		}
		if null {
			dst[i] = nil
			continue
		}
		switch t {
		case domain.TypeInteger, domain.TypeBigint:
			dst[i], err = cursor.Long(i)
		case domain.TypeDouble:
			dst[i], err = cursor.Double(i)
		case domain.TypeBoolean:
			dst[i], err = cursor.Boolean(i)
		default:
			dst[i], err = cursor.Text(i)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
