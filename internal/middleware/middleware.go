package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
)

// CORSMiddleware lets browsers reach the API through the gateway.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// LoggingMiddleware writes one log line per request. Server errors are
// logged at ERROR, client errors at WARN.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		level := logs.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = logs.LevelError
		case status >= http.StatusBadRequest:
			level = logs.LevelWarn
		}

		logs.LogJSON(level, "HTTP request", map[string]interface{}{
			"method":  c.Request.Method,
			"route":   route,
			"status":  status,
			"latency": time.Since(start).String(),
		})
	}
}
