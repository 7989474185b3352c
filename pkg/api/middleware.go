package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dirauth/pkg/logger"
)

// RequestLogger logs every request with its status and latency
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Get().DebugWith("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// AdminTokenMiddleware guards mutating endpoints with a bearer token.
// An empty configured token disables the mutating endpoints entirely.
func AdminTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			RespondError(c, http.StatusForbidden, "admin endpoints disabled: no admin token configured")
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || presented != token {
			RespondError(c, http.StatusUnauthorized, ErrMsgUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}
