package middleware

import (
	"net/http"
	"strings"

	"github.com/pedalsync/linkgate/internal/token"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyClaims holds the verified *token.Claims of the caller.
	ContextKeyClaims = "claims"
	// ContextKeyUserID holds the caller's user id.
	ContextKeyUserID = "user_id"
)

// AccessTokenVerifier checks an access token and returns its claims.
type AccessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (*token.Claims, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// RequireAccessToken rejects requests without a valid access token and puts
// the caller's claims on the gin context.
func RequireAccessToken(verifier AccessTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			c.Header("WWW-Authenticate", `Bearer realm="linkgate"`)
			util.AbortWithError(c, http.StatusUnauthorized, "invalid_token", "Bearer access token required")
			return
		}

		claims, err := verifier.VerifyAccessToken(raw)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="linkgate", error="invalid_token"`)
			util.AbortWithError(c, http.StatusUnauthorized, "invalid_token", "Access token is invalid or expired")
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyUserID, claims.Subject)
		c.Next()
	}
}

// GetClaims returns the claims stored by RequireAccessToken.
func GetClaims(c *gin.Context) (*token.Claims, bool) {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}

// GetUserID returns the authenticated caller's id, or "".
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
