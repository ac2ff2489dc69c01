// file: cmd/gateway/main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ja1902/presto-sqlite/internal/config"
	"github.com/ja1902/presto-sqlite/internal/connector"
	"github.com/ja1902/presto-sqlite/internal/observe"
	"github.com/ja1902/presto-sqlite/internal/transport/http/router"
)

const version = "v0.3.0"

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("SQLite bridge gateway %s 正在启动...", version)

	configPath := flag.String("config", "configs/sqlite.properties", "连接器配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: 加载配置 '%s' 失败: %v", *configPath, err)
	}

	observe.InitLogger(cfg.Server.LogLevel)
	observe.Register()
	slog.Info("配置加载并解析成功", "path", *configPath, "store", cfg.SQLite.DB, "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pprofServer := observe.EnablePprof(cfg.Server.PprofAddr)
	if cfg.Server.WatchStore {
		if err := observe.WatchStore(ctx, cfg.SQLite.DB); err != nil {
			slog.Warn("无法监视存储文件，继续启动", "error", err)
		}
	}

	c, err := connector.NewFromConfig(cfg)
	if err != nil {
		slog.Error("创建连接器失败", "error", err)
		os.Exit(1)
	}
	if err := c.HealthCheck(ctx); err != nil {
		// 存储可能稍后才出现，启动不依赖它
		slog.Warn("启动时存储不可达", "error", err)
	}

	server := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: router.New(router.Dependencies{
			Connector: c,
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("传输层: HTTP 路由器创建完成。")

	go func() {
		slog.Info("网关启动成功，开始监听HTTP请求...", "address", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("收到停机信号，准备优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if pprofServer != nil {
		_ = pprofServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		os.Exit(1)
	}
	slog.Info("HTTP服务已成功关闭。")
}
