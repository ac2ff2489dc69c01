package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnHandle_StableEncoding(t *testing.T) {
	d := ColumnDescriptor{Name: "id", Type: TypeInteger, OrdinalPosition: 0}

	data, err := EncodeColumnHandle(d)
	require.NoError(t, err)
	assert.Equal(t, `{"columnName":"id","type":"integer","ordinalPosition":0}`, string(data))

	decoded, err := DecodeColumnHandle(data)
	require.NoError(t, err)
	assert.Equal(t, d, decoded)

	again, err := EncodeColumnHandle(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again, "重复编码必须得到相同字节")
}

func TestDecodeColumnHandle_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"columnName":"id","type":"integer","ordinalPosition":0,"extra":1}`,
		"unknown type":  `{"columnName":"id","type":"decimal","ordinalPosition":0}`,
		"missing name":  `{"type":"integer","ordinalPosition":0}`,
		"missing type":  `{"columnName":"id","ordinalPosition":0}`,
		"not json":      `sqlite:id:integer`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeColumnHandle([]byte(input))
			assert.Error(t, err)
		})
	}

	_, err := EncodeColumnHandle(ColumnDescriptor{Type: TypeInteger})
	assert.Error(t, err)
}

func TestColumnDescriptor_Identity(t *testing.T) {
	a := ColumnDescriptor{Name: "score", Type: TypeDouble, OrdinalPosition: 2}
	b := ColumnDescriptor{Name: "score", Type: TypeVarchar, OrdinalPosition: 5}

	assert.True(t, a.SameColumn(b))
	assert.False(t, a.SameColumn(ColumnDescriptor{Name: "Score"}))
	assert.Equal(t, "sqlite:score:double", a.String())
	assert.Equal(t, ColumnMetadata{Name: "score", Type: TypeDouble}, a.Metadata())
}

func TestCanonicalType_Text(t *testing.T) {
	for _, ct := range AllCanonicalTypes() {
		parsed, err := ParseCanonicalType(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, parsed)
	}

	_, err := ParseCanonicalType("timestamp")
	assert.Error(t, err)

	_, err = json.Marshal(CanonicalType(0))
	assert.Error(t, err)
	assert.Equal(t, "unknown(0)", CanonicalType(0).String())
}

func TestSplit_JSON(t *testing.T) {
	data, err := json.Marshal(Split{Table: TableReference{Schema: DefaultSchema, Table: "orders"}})
	require.NoError(t, err)
	assert.Equal(t, `{"table":{"schemaName":"default","tableName":"orders"}}`, string(data))
}
