package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"PPChat/logger"
	"PPChat/service/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CORS answers browser preflights for the configured origins. An empty
// list allows any origin. It never calls c.Next, so it can run inside the
// MiddlewareManager.
func CORS(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
			if len(set) > 0 && !ok {
				if c.Request.Method == http.MethodOptions {
					c.AbortWithStatus(http.StatusForbidden)
				}
				return
			}
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}

// AccessLog 记录每个请求并上报耗时；需直接挂在 Engine 上（内部调用 c.Next）
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		cost := time.Since(start)
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(cost.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("cost", cost),
		}
		if uid := c.GetString("uid"); uid != "" {
			fields = append(fields, zap.String("uid", uid))
		}
		if rid := c.GetString(RequestIDHeader); rid != "" {
			fields = append(fields, zap.String("rid", rid))
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("[HTTP] request", fields...)
			return
		}
		logger.Debug("[HTTP] request", fields...)
	}
}
