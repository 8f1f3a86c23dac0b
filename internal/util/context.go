package util

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey int

const (
	ipKey contextKey = iota
	userAgentKey
	requestPathKey
	requestMethodKey
)

// RequestMetadataMiddleware copies the client IP, user agent and route onto
// the request context so services can attribute audit events without
// depending on gin.
func RequestMetadataMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gin's ClientIP() honours the trusted proxy configuration
		ctx := SetIPContext(c.Request.Context(), c.ClientIP())
		ctx = context.WithValue(ctx, userAgentKey, c.Request.UserAgent())
		ctx = context.WithValue(ctx, requestPathKey, c.Request.URL.Path)
		ctx = context.WithValue(ctx, requestMethodKey, c.Request.Method)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SetIPContext returns a copy of ctx carrying ip. An empty ip leaves ctx unchanged.
func SetIPContext(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipKey, ip)
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	return stringValue(ctx, ipKey)
}

func GetUserAgentFromContext(ctx context.Context) string {
	return stringValue(ctx, userAgentKey)
}

func GetRequestPathFromContext(ctx context.Context) string {
	return stringValue(ctx, requestPathKey)
}

func GetRequestMethodFromContext(ctx context.Context) string {
	return stringValue(ctx, requestMethodKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
