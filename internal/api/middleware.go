// internal/api/middleware.go
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// corsMiddleware 跨域支持
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RateLimiter 基于滑动窗口的简单限流器
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string][]time.Time
}

// NewRateLimiter 创建限流器并启动过期清理
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string][]time.Time),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup(10 * time.Minute)
		}
	}()

	return rl
}

// Allow 判断key在窗口内的请求数是否低于限额
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	kept := rl.visitors[key][:0]
	for _, t := range rl.visitors[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		rl.visitors[key] = kept
		return false
	}

	rl.visitors[key] = append(kept, now)
	return true
}

func (rl *RateLimiter) cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for key, times := range rl.visitors {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

var defaultLimiter = NewRateLimiter()

// rateLimitByIP 按客户端IP限流
func rateLimitByIP(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !defaultLimiter.Allow(c.ClientIP(), limit, window) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, &APIResponse{
				Success:   false,
				Error:     &APIError{Code: "rate_limited", Message: "请求过于频繁，请稍后再试"},
				Timestamp: time.Now(),
			})
			return
		}
		c.Next()
	}
}

// generationRateLimit 生成类接口的限流：成本高，限额收紧
func generationRateLimit() gin.HandlerFunc {
	return rateLimitByIP(20, time.Minute)
}

// defaultRateLimit 普通接口限流
func defaultRateLimit() gin.HandlerFunc {
	return rateLimitByIP(300, time.Minute)
}
