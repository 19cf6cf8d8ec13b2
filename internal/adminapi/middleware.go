package adminapi

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// loggingMiddleware logs each admin request's method, path, status and
// latency after it completes.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Printf("adminapi: %s %s %d %s", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
