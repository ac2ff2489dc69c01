// Package observe file: internal/observe/logging.go
package observe

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel 把配置中的级别字符串转换为 slog.Level，无法识别时回退为 INFO。
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger 创建 JSON 格式的 logger，writer 为 nil 时丢弃输出。
func NewLogger(levelStr string, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     ParseLevel(levelStr),
		AddSource: true,
	})
	return slog.New(handler).With(slog.String("service", "sqlite-bridge"))
}

// InitLogger 初始化全局的结构化日志记录器。
// 它应该在 main 函数的早期被调用。
func InitLogger(levelStr string) {
	slog.SetDefault(NewLogger(levelStr, os.Stdout))
}
