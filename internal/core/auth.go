package core

import (
	"context"
	"errors"
)

// ExternalIdentity is what the identity provider vouches for after it
// accepts a mobile ID token.
type ExternalIdentity struct {
	Provider   string
	ProviderID string // Subject at the provider
	Email      string
	Name       string
	Picture    string // Optional
}

// IdentityVerifier exchanges a mobile ID token for a verified identity.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

// ErrIDTokenRejected means the provider answered and refused the token, as
// opposed to the provider being unreachable.
var ErrIDTokenRejected = errors.New("id token rejected")
