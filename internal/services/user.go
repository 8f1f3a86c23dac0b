package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pedalsync/linkgate/internal/cache"
	"github.com/pedalsync/linkgate/internal/core"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/store"

	"github.com/rs/zerolog"
)

type UserService struct {
	store    *store.Store
	verifier core.IdentityVerifier
	cache    cache.Cache[models.User]
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewUserService creates a user service. verifier may be nil when mobile
// sign-in is not configured.
func NewUserService(
	s *store.Store,
	verifier core.IdentityVerifier,
	userCache cache.Cache[models.User],
	cacheTTL time.Duration,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		store:    s,
		verifier: verifier,
		cache:    userCache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// GetUser returns the user with id, served from the cache when possible.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := cache.GetWithFetch(ctx, s.cache, id, s.cacheTTL,
		func(ctx context.Context, key string) (models.User, error) {
			u, err := s.store.GetUserByID(ctx, key)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SignInWithIDToken verifies a mobile ID token with the identity provider
// and returns the matching local user, creating or refreshing it.
func (s *UserService) SignInWithIDToken(ctx context.Context, idToken string) (*models.User, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: mobile sign-in is not configured", ErrIdentityProvider)
	}

	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		if errors.Is(err, core.ErrIDTokenRejected) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		s.log.Error().Err(err).Msg("identity provider call failed")
		return nil, fmt.Errorf("%w: %v", ErrIdentityProvider, err)
	}

	user, err := s.store.UpsertProviderUser(ctx, &models.User{
		Email:      identity.Email,
		Name:       identity.Name,
		Picture:    identity.Picture,
		Provider:   identity.Provider,
		ProviderID: identity.ProviderID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if err := s.cache.Delete(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to invalidate cached user")
	}
	return user, nil
}
