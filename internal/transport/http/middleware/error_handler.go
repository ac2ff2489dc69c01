// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/ja1902/presto-sqlite/internal/core/port"
)

// 路由层自己的错误，不经过连接器
var (
	ErrNotFound   = errors.New("资源不存在")
	ErrBadRequest = errors.New("请求参数无效")
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误后直接返回，由这里统一写出响应。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// 流式响应已经开始时无法再改写状态码，只记录日志
		if c.Writer.Written() {
			slog.Error("响应已开始写出后发生错误", "path", c.FullPath(), "error", err)
			return
		}
		// 流式处理器可能已设置了自己的响应头
		c.Writer.Header().Del("Trailer")
		c.Writer.Header().Del("Content-Type")

		var ve validator.ValidationErrors
		var ee *port.EngineError
		switch {
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
		case errors.Is(err, ErrBadRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &ee):
			c.JSON(http.StatusInternalServerError, gin.H{"error": ee.Message, "code": ee.Code})
		default:
			slog.Error("未分类的处理器错误", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		}
	}
}
