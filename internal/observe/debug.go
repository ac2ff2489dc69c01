// Package observe file: internal/observe/debug.go
package observe

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

// EnablePprof 在独立的 mux 上暴露 /debug/pprof 端点，返回的 server 供 main 在退出时关闭。
// addr 为空时不启动，返回 nil。
func EnablePprof(addr string) *http.Server {
	if addr == "" {
		slog.Info("pprof 端点未启用 (地址为空)")
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("pprof 端点启动", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pprof 端点启动失败", "error", err)
		}
	}()
	return srv
}
