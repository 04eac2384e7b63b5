package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/logger"
)

// RequestLogger logs one line per request through the application logger
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   latency.String(),
			"client_ip": c.ClientIP(),
		}
		if userID := c.GetString(contextUserID); userID != "" {
			fields["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("[API] request failed", fields)
		case status >= 400:
			logger.Warn("[API] request rejected", fields)
		default:
			logger.Info("[API] request", fields)
		}
	}
}
