package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/b2bquota/internal/util"
	log "github.com/sirupsen/logrus"
)

// RequestLogMiddleware logs every request with its status and latency.
// Sensitive query parameters are masked before logging.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"query":   util.MaskSensitiveQuery(c.Request.URL.RawQuery),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("request failed")
			return
		}
		entry.Info("request")
	}
}
