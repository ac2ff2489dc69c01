// Package middleware file: internal/transport/http/middleware/rate_limiter.go
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 15 * time.Minute
)

// IPRateLimiter 按客户端 IP 做令牌桶限流，不活跃的 IP 条目随 LRU 过期回收。
type IPRateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *lru.LRU[string, *rate.Limiter]
}

// NewIPRateLimiter 创建限流器；perSecond <= 0 时不限流，返回 nil。
func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if perSecond <= 0 {
		slog.Info("HTTP 限流未启用")
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	slog.Info("HTTP 限流已启用", "rate", perSecond, "burst", burst)
	return &IPRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: lru.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL),
	}
}

// get 返回 ip 对应的限流器，不存在时创建。
func (l *IPRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(ip, lim)
	return lim
}

// Allow 报告 ip 当前是否还有令牌。nil 限流器总是放行。
func (l *IPRateLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	return l.get(ip).Allow()
}

// Middleware 返回 Gin 中间件，超限时返回 429。
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			slog.Warn("请求被限流", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}
