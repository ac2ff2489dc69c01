// file: cmd/plugins/sqlite_plugin/main.go
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ja1902/presto-sqlite/internal/config"
	"github.com/ja1902/presto-sqlite/internal/connector"
	"github.com/ja1902/presto-sqlite/internal/observe"
	"github.com/ja1902/presto-sqlite/internal/transport/rpc"
	"google.golang.org/grpc"
)

const (
	pluginVersion = "0.3.0"
	defaultAddr   = ":50051"
)

func main() {
	configPath := flag.String("config", "configs/sqlite.properties", "连接器配置文件路径")
	addrFlag := flag.String("addr", "", "gRPC 监听地址，覆盖配置中的 server.grpc_addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("启动失败：加载配置出错", "path", *configPath, "error", err)
		os.Exit(1)
	}
	observe.InitLogger(cfg.Server.LogLevel)
	observe.Register()

	addr := cfg.Server.GRPCAddr
	if *addrFlag != "" {
		addr = *addrFlag
	}
	if addr == "" {
		addr = defaultAddr
	}
	slog.Info("🔌 插件启动中...", "version", pluginVersion, "store", cfg.SQLite.DB, "address", addr)

	c, err := connector.NewFromConfig(cfg)
	if err != nil {
		slog.Error("插件无法创建连接器", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("gRPC 服务监听端口失败", "address", addr, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(rpc.UnaryLoggingInterceptor(slog.Default())))
	rpc.RegisterConnectorServer(grpcServer, rpc.NewServer(c))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("收到停机信号，正在停止 gRPC 服务...")
		grpcServer.GracefulStop()
	}()

	slog.Info("✅ SQLite插件启动成功，开始提供服务...")
	if err := grpcServer.Serve(lis); err != nil {
		slog.Error("gRPC 服务运行失败", "error", err)
		os.Exit(1)
	}
	slog.Info("插件已退出")
}
