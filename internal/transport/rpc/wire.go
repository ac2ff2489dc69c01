// Package rpc 实现连接器的 gRPC 插件协议。
// 消息统一使用 google.protobuf.Struct，不依赖生成代码；服务描述在这里手工声明，客户端与服务端共用。
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 是 gRPC 服务全名。
const ServiceName = "sqlitebridge.v1.Connector"

// 方法全名
const (
	MethodListSchemaNames  = "/" + ServiceName + "/ListSchemaNames"
	MethodListTables       = "/" + ServiceName + "/ListTables"
	MethodGetTableHandle   = "/" + ServiceName + "/GetTableHandle"
	MethodGetColumnHandles = "/" + ServiceName + "/GetColumnHandles"
	MethodGetSplits        = "/" + ServiceName + "/GetSplits"
	MethodHealthCheck      = "/" + ServiceName + "/HealthCheck"
	MethodScan             = "/" + ServiceName + "/Scan"
)

// TrailerCompletedBytes 是 Scan 结束时服务端写入 trailer 的已读字节数键。
const TrailerCompletedBytes = "x-completed-bytes"

// HealthServing 是健康检查通过时 status 字段的取值。
const HealthServing = "SERVING"

// ConnectorServer 是 gRPC 服务端需要实现的方法集合。
type ConnectorServer interface {
	ListSchemaNames(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTables(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTableHandle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetColumnHandles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSplits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Scan(*structpb.Struct, grpc.ServerStream) error
}

// ServiceDesc 是手工声明的服务描述。
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConnectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSchemaNames", Handler: unaryHandler(MethodListSchemaNames, ConnectorServer.ListSchemaNames)},
		{MethodName: "ListTables", Handler: unaryHandler(MethodListTables, ConnectorServer.ListTables)},
		{MethodName: "GetTableHandle", Handler: unaryHandler(MethodGetTableHandle, ConnectorServer.GetTableHandle)},
		{MethodName: "GetColumnHandles", Handler: unaryHandler(MethodGetColumnHandles, ConnectorServer.GetColumnHandles)},
		{MethodName: "GetSplits", Handler: unaryHandler(MethodGetSplits, ConnectorServer.GetSplits)},
		{MethodName: "HealthCheck", Handler: unaryHandler(MethodHealthCheck, ConnectorServer.HealthCheck)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Scan", Handler: scanHandler, ServerStreams: true},
	},
	Metadata: "sqlitebridge/v1/connector.proto",
}

// ScanStreamDesc 供客户端建立 Scan 流。
var ScanStreamDesc = &ServiceDesc.Streams[0]

// RegisterConnectorServer 把实现注册到 gRPC 服务器。
func RegisterConnectorServer(s grpc.ServiceRegistrar, srv ConnectorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(ConnectorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConnectorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConnectorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func scanHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ConnectorServer).Scan(in, stream)
}

// EncodeStruct 把任意可 JSON 序列化的值转换为 Struct。
func EncodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化 %T 失败: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("转换 %T 为 Struct 失败: %w", v, err)
	}
	return s, nil
}

// DecodeStruct 是 EncodeStruct 的逆操作。
func DecodeStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("序列化 Struct 失败: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 Struct 到 %T 失败: %w", v, err)
	}
	return nil
}

// 请求与响应消息，均以 JSON 字段名映射到 Struct。
type (
	ListTablesRequest struct {
		Schema *string `json:"schema,omitempty"`
	}
	TableHandleRequest struct {
		Schema string `json:"schema"`
		Table  string `json:"table"`
	}
	TableRequest struct {
		Table domain.TableReference `json:"table"`
	}
	ScanRequest struct {
		Split   domain.Split              `json:"split"`
		Columns []domain.ColumnDescriptor `json:"columns"`
	}

	SchemasResponse struct {
		Schemas []string `json:"schemas"`
	}
	TablesResponse struct {
		Tables []domain.TableReference `json:"tables"`
	}
	TableHandleResponse struct {
		Table *domain.TableReference `json:"table,omitempty"`
	}
	ColumnHandlesResponse struct {
		Columns []domain.ColumnDescriptor `json:"columns"`
	}
	SplitsResponse struct {
		Splits []domain.Split `json:"splits"`
	}
	HealthResponse struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
)

// rowValuesField 是行消息中保存字段值列表的键。
const rowValuesField = "values"

// EncodeRow 把一行按列类型编码为 Struct。
// 整数以十进制字符串传输，避免超过 2^53 的值在 JSON 数字中丢失精度。
func EncodeRow(types []domain.CanonicalType, values []any) (*structpb.Struct, error) {
	if len(types) != len(values) {
		return nil, fmt.Errorf("列类型数 %d 与字段数 %d 不一致", len(types), len(values))
	}
	list := make([]*structpb.Value, len(values))
	for i, v := range values {
		if v == nil {
			list[i] = structpb.NewNullValue()
			continue
		}
		switch types[i] {
		case domain.TypeInteger, domain.TypeBigint:
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("字段 %d 需要 int64，得到 %T", i, v)
			}
			list[i] = structpb.NewStringValue(strconv.FormatInt(n, 10))
		case domain.TypeDouble:
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("字段 %d 需要 float64，得到 %T", i, v)
			}
			list[i] = structpb.NewNumberValue(f)
		case domain.TypeBoolean:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("字段 %d 需要 bool，得到 %T", i, v)
			}
			list[i] = structpb.NewBoolValue(b)
		default:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("字段 %d 需要 string，得到 %T", i, v)
			}
			list[i] = structpb.NewStringValue(s)
		}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		rowValuesField: structpb.NewListValue(&structpb.ListValue{Values: list}),
	}}, nil
}

// DecodeRow 是 EncodeRow 的逆操作，NULL 解码为 nil。
func DecodeRow(types []domain.CanonicalType, row *structpb.Struct) ([]any, error) {
	list := row.GetFields()[rowValuesField].GetListValue().GetValues()
	if len(list) != len(types) {
		return nil, fmt.Errorf("行字段数 %d 与列类型数 %d 不一致", len(list), len(types))
	}
	out := make([]any, len(list))
	for i, v := range list {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
			continue
		}
		switch types[i] {
		case domain.TypeInteger, domain.TypeBigint:
			n, err := strconv.ParseInt(v.GetStringValue(), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("字段 %d 不是整数: %w", i, err)
			}
			out[i] = n
		case domain.TypeDouble:
			out[i] = v.GetNumberValue()
		case domain.TypeBoolean:
			out[i] = v.GetBoolValue()
		default:
			out[i] = v.GetStringValue()
		}
	}
	return out, nil
}
