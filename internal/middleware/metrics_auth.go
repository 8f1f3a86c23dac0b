package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware protects the metrics endpoint with a static Bearer
// token. An empty token leaves the endpoint open.
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := BearerToken(c)
		// Constant-time comparison to prevent timing attacks
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
			util.AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Valid bearer token required")
			return
		}

		c.Next()
	}
}
