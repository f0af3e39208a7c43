package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLog writes one line per request. Health and metrics checks are
// skipped.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "/health" || path == "/metrics" {
			return
		}
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Printf("http %s %s status=%d duration=%s", c.Request.Method, path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
