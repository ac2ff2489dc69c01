// file: internal/adapter/datasource/grpc_client/client.go
package grpc_client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/transport/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClientAdapter 把连接器插件的 gRPC 接口包装成普通的 Go 方法调用。
type ClientAdapter struct {
	conn *grpc.ClientConn
}

// New 创建一个新的 gRPC 客户端适配器实例。未指定 DialOption 时使用不安全连接 (本地开发用)。
func New(pluginAddress string, opts ...grpc.DialOption) (*ClientAdapter, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(pluginAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("无法连接到 gRPC 插件 at %s: %w", pluginAddress, err)
	}
	return &ClientAdapter{conn: conn}, nil
}

// invoke 发起一元调用，请求与响应都经 Struct 转换。
func (a *ClientAdapter) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := rpc.EncodeStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := a.conn.Invoke(ctx, method, in, out); err != nil {
		return fmt.Errorf("gRPC %s 调用失败: %w", method, err)
	}
	return rpc.DecodeStruct(out, resp)
}

func (a *ClientAdapter) ListSchemaNames(ctx context.Context) ([]string, error) {
	var resp rpc.SchemasResponse
	if err := a.invoke(ctx, rpc.MethodListSchemaNames, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Schemas, nil
}

func (a *ClientAdapter) ListTables(ctx context.Context, schema *string) ([]domain.TableReference, error) {
	var resp rpc.TablesResponse
	if err := a.invoke(ctx, rpc.MethodListTables, rpc.ListTablesRequest{Schema: schema}, &resp); err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

// GetTableHandle 在表不存在时返回 nil, nil。
func (a *ClientAdapter) GetTableHandle(ctx context.Context, schema, table string) (*domain.TableReference, error) {
	var resp rpc.TableHandleResponse
	if err := a.invoke(ctx, rpc.MethodGetTableHandle, rpc.TableHandleRequest{Schema: schema, Table: table}, &resp); err != nil {
		return nil, err
	}
	return resp.Table, nil
}

func (a *ClientAdapter) GetColumnHandles(ctx context.Context, table domain.TableReference) ([]domain.ColumnDescriptor, error) {
	var resp rpc.ColumnHandlesResponse
	if err := a.invoke(ctx, rpc.MethodGetColumnHandles, rpc.TableRequest{Table: table}, &resp); err != nil {
		return nil, err
	}
	return resp.Columns, nil
}

func (a *ClientAdapter) GetSplits(ctx context.Context, table domain.TableReference) ([]domain.Split, error) {
	var resp rpc.SplitsResponse
	if err := a.invoke(ctx, rpc.MethodGetSplits, rpc.TableRequest{Table: table}, &resp); err != nil {
		return nil, err
	}
	return resp.Splits, nil
}

// HealthCheck 在插件报告不健康时返回错误。
func (a *ClientAdapter) HealthCheck(ctx context.Context) error {
	slog.Debug("gRPC适配器: 正在将 HealthCheck 请求转发到插件...")
	var resp rpc.HealthResponse
	if err := a.invoke(ctx, rpc.MethodHealthCheck, struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Status != rpc.HealthServing {
		return fmt.Errorf("插件报告不健康状态: %s (%s)", resp.Status, resp.Error)
	}
	return nil
}

// Scan 打开服务端流，返回逐行读取的 RowStream。
func (a *ClientAdapter) Scan(ctx context.Context, split domain.Split, columns []domain.ColumnDescriptor) (*RowStream, error) {
	in, err := rpc.EncodeStruct(rpc.ScanRequest{Split: split, Columns: columns})
	if err != nil {
		return nil, err
	}
	stream, err := a.conn.NewStream(ctx, rpc.ScanStreamDesc, rpc.MethodScan)
	if err != nil {
		return nil, fmt.Errorf("打开 Scan 流失败: %w", err)
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, fmt.Errorf("发送 Scan 请求失败: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("关闭 Scan 请求方向失败: %w", err)
	}
	types := make([]domain.CanonicalType, len(columns))
	for i, c := range columns {
		types[i] = c.Type
	}
	return &RowStream{stream: stream, types: types}, nil
}

// Close 关闭与 gRPC 插件的连接
func (a *ClientAdapter) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// RowStream 是 Scan 返回的行流。
type RowStream struct {
	stream grpc.ClientStream
	types  []domain.CanonicalType
}

// Next 返回下一行，流结束时返回 io.EOF。
func (r *RowStream) Next() ([]any, error) {
	msg := new(structpb.Struct)
	if err := r.stream.RecvMsg(msg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("接收扫描行失败: %w", err)
	}
	return rpc.DecodeRow(r.types, msg)
}

// CompletedBytes 返回服务端在流结束时报告的已读字节数，流未结束时为 0。
func (r *RowStream) CompletedBytes() int64 {
	return completedBytes(r.stream.Trailer())
}

func completedBytes(md metadata.MD) int64 {
	values := md.Get(rpc.TrailerCompletedBytes)
	if len(values) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
