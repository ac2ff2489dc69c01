// file: internal/observe/observe_test.go

package observe

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swapDefaultRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	oldReg, oldGat := prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldReg
		prometheus.DefaultGatherer = oldGat
	})
	return reg
}

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestRegisterTo_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterTo(reg)

	ScansTotal.WithLabelValues("exhausted").Inc()
	before := testCounter(t, reg, "sqlite_bridge_scans_total", "exhausted")
	ScansTotal.WithLabelValues("exhausted").Inc()
	after := testCounter(t, reg, "sqlite_bridge_scans_total", "exhausted")
	assert.Equal(t, before+1, after)

	assert.Panics(t, func() { RegisterTo(reg) }, "重复注册应当 panic")
}

func testCounter(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	mf := findFamily(t, reg, name)
	require.NotNil(t, mf, name)
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "outcome" && lp.GetValue() == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("未找到 %s{outcome=%q}", name, outcome)
	return 0
}

func TestPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := swapDefaultRegistry(t)
	Register()

	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/v1/schemas/:schema/tables", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/schemas/default/tables", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	mf := findFamily(t, reg, "sqlite_bridge_http_request_duration_seconds")
	require.NotNil(t, mf)
	paths := map[string]bool{}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "path" {
				paths[lp.GetValue()] = true
			}
		}
	}
	assert.True(t, paths["/api/v1/schemas/:schema/tables"])
	assert.True(t, paths["unmatched"])
	assert.False(t, paths["/api/v1/schemas/default/tables"], "不应使用原始路径作为标签")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sqlite_bridge_http_request_duration_seconds")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)

	logger.Info("丢弃")
	assert.Zero(t, buf.Len(), "低于 WARN 的日志应被过滤")

	logger.Warn("保留", "table", "orders")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "保留", entry["msg"])
	assert.Equal(t, "orders", entry["table"])
	assert.Equal(t, "sqlite-bridge", entry["service"])

	assert.NotPanics(t, func() { NewLogger("info", nil).Error("无输出") })
}

func TestClassifyStoreEvent(t *testing.T) {
	store := filepath.Join(string(filepath.Separator)+"data", "store.db")

	cases := []struct {
		name   string
		event  fsnotify.Event
		op     string
		wanted bool
	}{
		{"write", fsnotify.Event{Name: store, Op: fsnotify.Write}, "write", true},
		{"wal", fsnotify.Event{Name: store + "-wal", Op: fsnotify.Write}, "write", true},
		{"journal create", fsnotify.Event{Name: store + "-journal", Op: fsnotify.Create}, "create", true},
		{"remove", fsnotify.Event{Name: store, Op: fsnotify.Remove}, "remove", true},
		{"rename", fsnotify.Event{Name: store, Op: fsnotify.Rename}, "rename", true},
		{"chmod", fsnotify.Event{Name: store, Op: fsnotify.Chmod}, "", false},
		{"sibling", fsnotify.Event{Name: filepath.Join(filepath.Dir(store), "other.db"), Op: fsnotify.Write}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op, ok := classifyStoreEvent(store, tc.event)
			assert.Equal(t, tc.wanted, ok)
			assert.Equal(t, tc.op, op)
		})
	}
}

func TestEnablePprof_EmptyAddr(t *testing.T) {
	assert.Nil(t, EnablePprof(""))
}
