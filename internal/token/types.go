package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeBearer = "Bearer"

	// AudienceAccess and AudienceRefresh keep the two token kinds from being
	// accepted in each other's place.
	AudienceAccess  = "web"
	AudienceRefresh = "refresh"
)

// Identity is the user profile embedded in every token.
type Identity struct {
	UserID  string
	Email   string
	Name    string
	Picture string
}

// Claims is the JWT payload for both access and refresh tokens.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the profile carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:  c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Picture: c.Picture,
	}
}

// Result is a freshly signed token.
type Result struct {
	TokenString string
	TokenType   string
	ExpiresAt   time.Time
	Claims      *Claims
}
