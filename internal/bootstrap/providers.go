package bootstrap

import (
	"github.com/pedalsync/linkgate/internal/auth"
	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/core"
	"github.com/pedalsync/linkgate/internal/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// initializeIdentityVerifier creates the ID-token verifier used by mobile
// sign-in. It returns nil when no identity API is configured.
func initializeIdentityVerifier(
	cfg *config.Config,
	recorder metrics.Recorder,
	clock clockwork.Clock,
	log zerolog.Logger,
) (core.IdentityVerifier, error) {
	if cfg.IdentityAPIURL == "" {
		return nil, nil //nolint:nilnil // mobile sign-in disabled
	}

	retryClient, err := auth.NewRetryClient(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("url", cfg.IdentityAPIURL).
		Str("auth_mode", cfg.IdentityAPIAuthMode).
		Int("max_retries", cfg.IdentityAPIMaxRetries).
		Msg("identity provider configured")
	return auth.NewIDTokenVerifier(cfg.IdentityAPIURL, retryClient, recorder, clock), nil
}
