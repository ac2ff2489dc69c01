// Package observe file: internal/observe/storewatch.go
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchStore 监视存储文件所在目录，记录存储文件被外部写入、替换或删除的事件。
// 桥接层没有任何缓存，这里只做日志与计数，便于把扫描异常与并发写入对应起来。
// ctx 结束时监视器关闭。
func WatchStore(ctx context.Context, storePath string) error {
	abs, err := filepath.Abs(storePath)
	if err != nil {
		return fmt.Errorf("解析存储路径 '%s' 失败: %w", storePath, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}
	// 监视目录而不是文件本身，文件被原子替换后仍能收到事件
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("添加目录 '%s' 到监视器失败: %w", filepath.Dir(abs), err)
	}

	logger := slog.With("component", "observe.storewatch", "path", abs)
	go func() {
		defer watcher.Close()
		logger.Info("存储文件监视器已启动")
		for {
			select {
			case <-ctx.Done():
				logger.Info("存储文件监视器已停止")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if op, relevant := classifyStoreEvent(abs, event); relevant {
					StoreFileEvents.WithLabelValues(op).Inc()
					logger.Warn("存储文件被外部修改", "op", op)
				}
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("存储文件监视器报告错误", "error", errWatch)
			}
		}
	}()
	return nil
}

// classifyStoreEvent 只关心存储文件本身及其 -wal/-journal 伴随文件。
func classifyStoreEvent(storePath string, event fsnotify.Event) (string, bool) {
	name := filepath.Clean(event.Name)
	if name != storePath && name != storePath+"-wal" && name != storePath+"-journal" {
		return "", false
	}
	switch {
	case event.Op.Has(fsnotify.Remove):
		return "remove", true
	case event.Op.Has(fsnotify.Rename):
		return "rename", true
	case event.Op.Has(fsnotify.Create):
		return "create", true
	case event.Op.Has(fsnotify.Write):
		return "write", true
	default:
		return "", false
	}
}
