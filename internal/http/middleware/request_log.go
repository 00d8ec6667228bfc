package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/ctxutil"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

// RequestLogger logs one line per request. Probe and scrape routes passed in
// quietPaths log at debug level unless they fail.
func RequestLogger(log *logger.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		td := ctxutil.GetTraceData(c.Request.Context())

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td != nil {
			if td.TraceID != "" {
				fields = append(fields, "trace_id", td.TraceID)
			}
			if td.RequestID != "" {
				fields = append(fields, "request_id", td.RequestID)
			}
		}
		if c.Request.URL.RawQuery != "" && path == c.Request.URL.Path {
			fields = append(fields, "query", c.Request.URL.RawQuery)
		}

		switch {
		case quiet[path] && status < 400:
			log.Debug("HTTP request", fields...)
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
