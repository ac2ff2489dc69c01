// Package port file: internal/core/port/errors.go
package port

import (
	"errors"
	"fmt"
)

// 错误分类。适配器用 fmt.Errorf("%w: ...: %w", ErrXxx, cause) 包装底层错误，
// 调用方用 errors.Is 判断类别。
var (
	ErrConfiguration = errors.New("配置错误")
	ErrConnectivity  = errors.New("无法连接到存储")
	ErrCatalogQuery  = errors.New("目录查询失败")
	ErrScanExecution = errors.New("扫描语句执行失败")
	ErrRead          = errors.New("读取字段失败")
	ErrUnsupported   = errors.New("不支持的操作")
)

// GenericInternalError 是暴露给引擎的唯一错误类别。
const GenericInternalError = "GENERIC_INTERNAL_ERROR"

// EngineError 是引擎边界上的统一错误形态，携带原始诊断信息。
type EngineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 保留内部错误链，便于日志与测试判断原始类别。
func (e *EngineError) Unwrap() error {
	return e.Err
}

// ToEngineError 把任意内部错误翻译为 EngineError；nil 保持为 nil，已翻译的错误原样返回。
func ToEngineError(err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{
		Code:    GenericInternalError,
		Message: err.Error(),
		Err:     err,
	}
}

// Kind 返回错误所属类别的简短名称，用于指标标签。
// 扫描构造阶段的连接失败同时携带 ErrScanExecution 与 ErrConnectivity，按前者归类。
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrScanExecution):
		return "scan_execution"
	case errors.Is(err, ErrCatalogQuery):
		return "catalog_query"
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	case errors.Is(err, ErrRead):
		return "read"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "internal"
	}
}
