package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessLog はリクエストごとに構造化ログを1行出力します。
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if action := c.Query("action"); action != "" {
			attrs = append(attrs, slog.String("action", action))
		}
		if reqID := c.GetString(ContextRequestIDKey); reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
			logger.Error("request completed", attrs...)
			return
		}

		logger.Info("request completed", attrs...)
	}
}
