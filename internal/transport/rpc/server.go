// file: internal/transport/rpc/server.go
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/ja1902/presto-sqlite/internal/connector"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ ConnectorServer = (*Server)(nil)

// Server 把 port.Connector 暴露为 gRPC 服务。
type Server struct {
	connector port.Connector
	logger    *slog.Logger
}

// NewServer 创建 gRPC 服务实现。
func NewServer(c port.Connector) *Server {
	return &Server{
		connector: c,
		logger:    slog.Default().With("component", "rpc.server"),
	}
}

func (s *Server) ListSchemaNames(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(SchemasResponse{Schemas: s.connector.ListSchemaNames(ctx)})
}

func (s *Server) ListTables(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListTablesRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	tables, err := s.connector.ListTables(ctx, req.Schema)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(TablesResponse{Tables: tables})
}

func (s *Server) GetTableHandle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TableHandleRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ref, err := s.connector.GetTableHandle(ctx, req.Schema, req.Table)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(TableHandleResponse{Table: ref})
}

func (s *Server) GetColumnHandles(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TableRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cols, err := s.connector.GetColumnHandles(ctx, req.Table)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(ColumnHandlesResponse{Columns: cols})
}

func (s *Server) GetSplits(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TableRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	splits, err := s.connector.GetSplits(ctx, req.Table)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(SplitsResponse{Splits: splits})
}

// HealthCheck 总是成功返回，不健康时在 status 字段中说明。
func (s *Server) HealthCheck(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.connector.HealthCheck(ctx); err != nil {
		s.logger.Warn("插件健康检查失败", "error", err)
		return respond(HealthResponse{Status: "NOT_SERVING", Error: err.Error()})
	}
	return respond(HealthResponse{Status: HealthServing})
}

// Scan 打开游标并逐行推送，结束时把已读字节数写入 trailer。
// 客户端取消时停止读取并关闭游标。
func (s *Server) Scan(in *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	var req ScanRequest
	if err := DecodeStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	cursor, err := s.connector.OpenCursor(ctx, req.Split, req.Columns)
	if err != nil {
		return toStatus(err)
	}
	defer cursor.Close()

	start := time.Now()
	types := connector.ColumnTypes(req.Columns)
	values := make([]any, len(types))
	var rows int64
	for {
		if errCtx := ctx.Err(); errCtx != nil {
			return status.FromContextError(errCtx).Err()
		}
		ok, err := cursor.Advance()
		if err != nil {
			return toStatus(err)
		}
		if !ok {
			break
		}
		if err := connector.ReadRow(cursor, types, values); err != nil {
			return toStatus(err)
		}
		msg, err := EncodeRow(types, values)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
		rows++
	}

	stream.SetTrailer(metadata.Pairs(TrailerCompletedBytes, strconv.FormatInt(cursor.CompletedBytes(), 10)))
	s.logger.Info("扫描完成",
		"table", req.Split.Table.String(),
		"rows", rows,
		"completed_bytes", cursor.CompletedBytes(),
		"duration", time.Since(start),
	)
	return nil
}

// UnaryLoggingInterceptor 记录每个一元调用的方法、耗时与状态码。
func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC 调用",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

func respond(v any) (*structpb.Struct, error) {
	out, err := EncodeStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus 把 EngineError 映射为 codes.Internal，消息保留引擎侧可见的诊断信息。
func toStatus(err error) error {
	var ee *port.EngineError
	if errors.As(err, &ee) {
		return status.Error(codes.Internal, ee.Error())
	}
	return status.Error(codes.Internal, port.ToEngineError(err).Error())
}
