// file: internal/transport/http/router/router.go
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ja1902/presto-sqlite/internal/connector"
	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/ja1902/presto-sqlite/internal/observe"
	"github.com/ja1902/presto-sqlite/internal/transport/http/middleware"
)

// TrailerCompletedBytes 是行流结束后写入 HTTP trailer 的已读字节数。
const TrailerCompletedBytes = "X-Completed-Bytes"

// flushEvery 控制行流每写出多少行刷新一次
const flushEvery = 500

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Connector port.Connector
	RateLimit float64
	RateBurst int
}

// New 创建并配置基于 Gin 的 HTTP 路由器 (V1 版本)
func New(deps Dependencies) http.Handler {
	router := gin.New()

	// --- 配置全局中间件 ---
	router.Use(gin.Recovery())
	router.Use(observe.PrometheusMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", TrailerCompletedBytes},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandlingMiddleware())

	router.GET("/healthz", healthHandler(deps.Connector))
	router.GET("/metrics", gin.WrapH(observe.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewIPRateLimiter(deps.RateLimit, deps.RateBurst).Middleware())
	{
		v1.GET("/schemas", schemasHandler(deps.Connector))
		v1.GET("/schemas/:schema/tables", tablesHandler(deps.Connector))

		tableGroup := v1.Group("/schemas/:schema/tables/:table")
		{
			tableGroup.GET("", tableMetadataHandler(deps.Connector))
			tableGroup.GET("/columns", columnsHandler(deps.Connector))
			tableGroup.GET("/rows", rowsHandler(deps.Connector))
		}
	}

	return router
}

// healthHandler 存储可达时返回 200，否则 503。
func healthHandler(c port.Connector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if err := c.HealthCheck(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_SERVING", "error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "SERVING"})
	}
}

// --- V1 元数据平面处理器 ---

func schemasHandler(c port.Connector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"data": c.ListSchemaNames(ctx.Request.Context())})
	}
}

func tablesHandler(c port.Connector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		schema := ctx.Param("schema")
		tables, err := c.ListTables(ctx.Request.Context(), &schema)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Table
		}
		ctx.JSON(http.StatusOK, gin.H{"data": names})
	}
}

func tableMetadataHandler(c port.Connector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ref, ok := resolveTable(ctx, c)
		if !ok {
			return
		}
		meta, err := c.GetTableMetadata(ctx.Request.Context(), *ref)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": meta})
	}
}

func columnsHandler(c port.Connector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ref, ok := resolveTable(ctx, c)
		if !ok {
			return
		}
		cols, err := c.GetColumnHandles(ctx.Request.Context(), *ref)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": cols})
	}
}

// --- V1 数据平面处理器 ---

// rowsHandler 以 NDJSON 流式返回整表数据，每行一个 JSON 数组，字段顺序与 columns 参数一致。
// 未指定 columns 时返回全部列。已读字节数在流结束后写入 trailer。
func rowsHandler(c port.Connector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx := ctx.Request.Context()
		ref, ok := resolveTable(ctx, c)
		if !ok {
			return
		}
		all, err := c.GetColumnHandles(reqCtx, *ref)
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		columns, err := selectColumns(all, ctx.Query("columns"))
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		splits, err := c.GetSplits(reqCtx, *ref)
		if err != nil {
			_ = ctx.Error(err)
			return
		}

		// 游标全部在写出响应头之前打开，构造失败时仍能返回错误状态码
		cursors := make([]port.RecordCursor, 0, len(splits))
		defer func() {
			for _, cur := range cursors {
				_ = cur.Close()
			}
		}()
		for _, split := range splits {
			cur, err := c.OpenCursor(reqCtx, split, columns)
			if err != nil {
				_ = ctx.Error(err)
				return
			}
			cursors = append(cursors, cur)
		}

		ctx.Header("Content-Type", "application/x-ndjson")
		ctx.Header("Trailer", TrailerCompletedBytes)
		ctx.Status(http.StatusOK)

		types := connector.ColumnTypes(columns)
		values := make([]any, len(types))
		enc := json.NewEncoder(ctx.Writer)
		var rows, completed int64
		for _, cur := range cursors {
			for {
				if reqCtx.Err() != nil {
					slog.Info("客户端断开，停止行流", "table", ref.String(), "rows", rows)
					return
				}
				more, err := cur.Advance()
				if err != nil {
					_ = ctx.Error(err)
					return
				}
				if !more {
					break
				}
				if err := connector.ReadRow(cur, types, values); err != nil {
					_ = ctx.Error(err)
					return
				}
				if err := enc.Encode(values); err != nil {
					_ = ctx.Error(err)
					return
				}
				rows++
				if rows%flushEvery == 0 {
					ctx.Writer.Flush()
				}
			}
			completed += cur.CompletedBytes()
		}
		ctx.Writer.Header().Set(TrailerCompletedBytes, strconv.FormatInt(completed, 10))
		slog.Debug("行流结束", "table", ref.String(), "rows", rows, "completed_bytes", completed)
	}
}

// resolveTable 查找路径中的表，不存在时附加 404 错误并返回 false。
func resolveTable(ctx *gin.Context, c port.Connector) (*domain.TableReference, bool) {
	schema, table := ctx.Param("schema"), ctx.Param("table")
	ref, err := c.GetTableHandle(ctx.Request.Context(), schema, table)
	if err != nil {
		_ = ctx.Error(err)
		return nil, false
	}
	if ref == nil {
		_ = ctx.Error(fmt.Errorf("%w: 表 '%s.%s'", middleware.ErrNotFound, schema, table))
		return nil, false
	}
	return ref, true
}

// selectColumns 按逗号分隔的列名挑选列描述符，保持请求顺序，列名大小写不敏感。
func selectColumns(all []domain.ColumnDescriptor, list string) ([]domain.ColumnDescriptor, error) {
	if strings.TrimSpace(list) == "" {
		return all, nil
	}
	byName := make(map[string]domain.ColumnDescriptor, len(all))
	for _, col := range all {
		byName[strings.ToLower(col.Name)] = col
	}
	names := strings.Split(list, ",")
	out := make([]domain.ColumnDescriptor, 0, len(names))
	for _, name := range names {
		col, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: 未知列 '%s'", middleware.ErrBadRequest, strings.TrimSpace(name))
		}
		out = append(out, col)
	}
	return out, nil
}
