package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEncodeDecodeRow(t *testing.T) {
	types := []domain.CanonicalType{
		domain.TypeBigint, domain.TypeInteger, domain.TypeDouble, domain.TypeBoolean, domain.TypeVarchar, domain.TypeVarchar,
	}
	values := []any{int64(math.MaxInt64), int64(-7), 2.25, true, "héllo", nil}

	msg, err := EncodeRow(types, values)
	require.NoError(t, err)

	list := msg.GetFields()[rowValuesField].GetListValue().GetValues()
	require.Len(t, list, len(values))
	assert.Equal(t, "9223372036854775807", list[0].GetStringValue(), "整数以字符串传输")
	assert.IsType(t, &structpb.Value_NullValue{}, list[5].GetKind())

	got, err := DecodeRow(types, msg)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestEncodeRow_Mismatch(t *testing.T) {
	_, err := EncodeRow([]domain.CanonicalType{domain.TypeInteger}, []any{"x"})
	assert.Error(t, err)

	_, err = EncodeRow([]domain.CanonicalType{domain.TypeInteger}, nil)
	assert.Error(t, err)
}

func TestDecodeRow_Errors(t *testing.T) {
	msg, err := EncodeRow([]domain.CanonicalType{domain.TypeVarchar}, []any{"abc"})
	require.NoError(t, err)

	_, err = DecodeRow([]domain.CanonicalType{domain.TypeBigint}, msg)
	assert.Error(t, err, "非数字字符串不能解码为整数")

	_, err = DecodeRow([]domain.CanonicalType{domain.TypeVarchar, domain.TypeVarchar}, msg)
	assert.Error(t, err)
}

func TestEncodeDecodeStruct(t *testing.T) {
	schema := "default"
	in, err := EncodeStruct(ListTablesRequest{Schema: &schema})
	require.NoError(t, err)

	var out ListTablesRequest
	require.NoError(t, DecodeStruct(in, &out))
	require.NotNil(t, out.Schema)
	assert.Equal(t, "default", *out.Schema)

	var empty ListTablesRequest
	require.NoError(t, DecodeStruct(nil, &empty))
	assert.Nil(t, empty.Schema)

	cols := []domain.ColumnDescriptor{{Name: "id", Type: domain.TypeBigint, OrdinalPosition: 0}}
	in, err = EncodeStruct(ColumnHandlesResponse{Columns: cols})
	require.NoError(t, err)
	var resp ColumnHandlesResponse
	require.NoError(t, DecodeStruct(in, &resp))
	assert.Equal(t, cols, resp.Columns)
}

// failingConnector 让每个调用都返回同一个错误
type failingConnector struct {
	port.Connector
	err error
}

func (f failingConnector) ListTables(context.Context, *string) ([]domain.TableReference, error) {
	return nil, f.err
}

func (f failingConnector) HealthCheck(context.Context) error { return f.err }

func TestServer_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	engineErr := port.ToEngineError(fmt.Errorf("%w: disk gone", port.ErrConnectivity))
	s := NewServer(failingConnector{err: engineErr})

	_, err := s.ListTables(ctx, &structpb.Struct{})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "GENERIC_INTERNAL_ERROR")
	assert.Contains(t, status.Convert(err).Message(), "disk gone")

	bad, err := structpb.NewStruct(map[string]any{"schema": 42.0})
	require.NoError(t, err)
	_, err = s.ListTables(ctx, bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := s.HealthCheck(ctx, nil)
	require.NoError(t, err, "不健康不是调用失败")
	var health HealthResponse
	require.NoError(t, DecodeStruct(out, &health))
	assert.Equal(t, "NOT_SERVING", health.Status)
	assert.Contains(t, health.Error, "disk gone")
}

func TestToStatus_PlainError(t *testing.T) {
	err := toStatus(errors.New("raw"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), port.GenericInternalError)
}
