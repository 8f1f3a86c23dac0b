package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/pedalsync/linkgate/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// LocalTokenProvider signs and verifies HS256 tokens. Access and refresh
// tokens use independent secrets so a leaked access key cannot mint
// refresh tokens.
type LocalTokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         clockwork.Clock
}

// NewLocalTokenProvider creates a new local token provider
func NewLocalTokenProvider(cfg *config.Config, clock clockwork.Clock) *LocalTokenProvider {
	return &LocalTokenProvider{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		issuer:        cfg.JWTIssuer,
		accessTTL:     cfg.AccessTokenExpiration,
		refreshTTL:    cfg.RefreshTokenExpiration,
		clock:         clock,
	}
}

// AccessTTL is the lifetime of newly issued access tokens.
func (p *LocalTokenProvider) AccessTTL() time.Duration {
	return p.accessTTL
}

// RefreshTTL is the lifetime of newly issued refresh tokens.
func (p *LocalTokenProvider) RefreshTTL() time.Duration {
	return p.refreshTTL
}

func (p *LocalTokenProvider) sign(
	id Identity,
	audience string,
	secret []byte,
	ttl time.Duration,
) (*Result, error) {
	now := p.clock.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		Email:   id.Email,
		Name:    id.Name,
		Picture: id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &Result{
		TokenString: tokenString,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
		Claims:      claims,
	}, nil
}

// GenerateAccessToken issues a short-lived token for API calls.
func (p *LocalTokenProvider) GenerateAccessToken(id Identity) (*Result, error) {
	return p.sign(id, AudienceAccess, p.accessSecret, p.accessTTL)
}

// GenerateRefreshToken issues a long-lived token that can only be exchanged
// for new access tokens.
func (p *LocalTokenProvider) GenerateRefreshToken(id Identity) (*Result, error) {
	return p.sign(id, AudienceRefresh, p.refreshSecret, p.refreshTTL)
}

// ValidateAccessToken checks signature, issuer, audience and expiry.
func (p *LocalTokenProvider) ValidateAccessToken(tokenString string) (*Claims, error) {
	return p.parse(tokenString, AudienceAccess, p.accessSecret)
}

// ValidateRefreshToken checks signature, issuer, audience and expiry.
// It says nothing about revocation; that lives in the KV store.
func (p *LocalTokenProvider) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return p.parse(tokenString, AudienceRefresh, p.refreshSecret)
}

func (p *LocalTokenProvider) parse(tokenString, audience string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
