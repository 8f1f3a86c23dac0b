package auth

import (
	"fmt"

	"github.com/pedalsync/linkgate/internal/config"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// NewRetryClient creates the HTTP client used to reach the identity API.
// Requests are signed according to IDENTITY_API_AUTH_MODE and retried with
// exponential backoff on transport errors and 5xx responses.
func NewRetryClient(cfg *config.Config) (*retry.Client, error) {
	client, err := httpclient.NewAuthClient(
		cfg.IdentityAPIAuthMode,
		cfg.IdentityAPIAuthSecret,
		httpclient.WithTimeout(cfg.IdentityAPITimeout),
		httpclient.WithHeaderName(cfg.IdentityAPIAuthHeader),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(cfg.IdentityAPIMaxRetries),
		retry.WithInitialRetryDelay(cfg.IdentityAPIRetryDelay),
		retry.WithMaxRetryDelay(cfg.IdentityAPIMaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	return retryClient, nil
}
