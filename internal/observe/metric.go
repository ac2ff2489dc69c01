// Package observe 暴露 Prometheus 指标、结构化日志与调试端点
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	ConnectionsOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlite_bridge_connections_opened_total",
		Help: "打开存储连接的次数",
	}, []string{"outcome"})

	MetadataCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlite_bridge_metadata_calls_total",
		Help: "元数据调用次数",
	}, []string{"op", "outcome"})

	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlite_bridge_scans_total",
		Help: "扫描次数，按结束状态区分",
	}, []string{"outcome"})

	ScanRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sqlite_bridge_scan_rows_total",
		Help: "游标读出的行数",
	})

	ScanCompletedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sqlite_bridge_scan_completed_bytes_total",
		Help: "游标估算的已读字节数",
	})

	StoreFileEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlite_bridge_store_file_events_total",
		Help: "存储文件的外部变更事件",
	}, []string{"op"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlite_bridge_http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})
)

// Register 必须在 main 调用一次
func Register() {
	RegisterTo(prometheus.DefaultRegisterer)
}

// RegisterTo 把全部指标注册到指定的 Registerer，测试中用独立 Registry 调用。
func RegisterTo(reg prometheus.Registerer) {
	reg.MustRegister(
		ConnectionsOpened,
		MetadataCalls,
		ScansTotal,
		ScanRows,
		ScanCompletedBytes,
		StoreFileEvents,
		httpRequestDuration,
	)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时，path 使用路由模板以控制基数。
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
