package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// RecoveryWithLog turns a handler panic into a 500 with a generic body and
// logs the panic value with its stack.
func RecoveryWithLog(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
