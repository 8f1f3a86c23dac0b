package bootstrap

import (
	"errors"
	"fmt"

	"github.com/pedalsync/linkgate/internal/config"

	"github.com/rs/zerolog"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateIdentityConfig(cfg); err != nil {
		return fmt.Errorf("invalid identity provider configuration: %w", err)
	}

	if cfg.IdentityAPIURL == "" {
		log.Warn().Msg("IDENTITY_API_URL is not set; POST /auth/mobile will answer identity_provider_error")
	}
	if cfg.MetricsEnabled && cfg.MetricsToken == "" {
		log.Warn().Msg("metrics endpoint is enabled without METRICS_TOKEN")
	}
	return nil
}

// validateIdentityConfig checks that signed requests have something to sign with
func validateIdentityConfig(cfg *config.Config) error {
	if cfg.IdentityAPIURL == "" {
		return nil
	}
	switch cfg.IdentityAPIAuthMode {
	case config.IdentityAuthModeSimple, config.IdentityAuthModeHMAC:
		if cfg.IdentityAPIAuthSecret == "" {
			return fmt.Errorf(
				"IDENTITY_API_AUTH_SECRET is required when IDENTITY_API_AUTH_MODE=%s",
				cfg.IdentityAPIAuthMode,
			)
		}
	}
	if cfg.IdentityAPITimeout <= 0 {
		return errors.New("IDENTITY_API_TIMEOUT must be a positive duration")
	}
	return nil
}
