package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pedalsync/linkgate/internal/core"
	"github.com/pedalsync/linkgate/internal/metrics"

	retry "github.com/appleboy/go-httpretry"
	"github.com/jonboulle/clockwork"
)

// Compile-time interface check.
var _ core.IdentityVerifier = (*IDTokenVerifier)(nil)

// IDTokenVerifier asks the identity API whether a mobile ID token is
// genuine and who it belongs to.
type IDTokenVerifier struct {
	url         string
	retryClient *retry.Client
	metrics     metrics.Recorder
	clock       clockwork.Clock
}

func NewIDTokenVerifier(
	url string,
	retryClient *retry.Client,
	m metrics.Recorder,
	clock clockwork.Clock,
) *IDTokenVerifier {
	return &IDTokenVerifier{
		url:         url,
		retryClient: retryClient,
		metrics:     m,
		clock:       clock,
	}
}

// APIVerifyRequest is the request payload sent to the identity API
type APIVerifyRequest struct {
	IDToken string `json:"id_token"`
}

// APIVerifyResponse is the expected response from the identity API
type APIVerifyResponse struct {
	Valid    bool   `json:"valid"`
	Provider string `json:"provider,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Message  string `json:"message,omitempty"`
}

// VerifyIDToken returns the identity behind idToken. Errors matching
// core.ErrIDTokenRejected mean the provider answered and said no; any
// other error means it could not be asked.
func (v *IDTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*core.ExternalIdentity, error) {
	start := v.clock.Now()
	identity, err := v.verify(ctx, idToken)

	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, core.ErrIDTokenRejected):
		result = "rejected"
	default:
		result = "error"
	}
	v.metrics.RecordIdentityProviderCall(result, v.clock.Since(start))

	return identity, err
}

func (v *IDTokenVerifier) verify(ctx context.Context, idToken string) (*core.ExternalIdentity, error) {
	jsonData, err := json.Marshal(APIVerifyRequest{IDToken: idToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := v.retryClient.Post(
		ctx,
		v.url,
		retry.WithBody("application/json", bytes.NewBuffer(jsonData)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityAPIConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrIdentityAPIInvalidResp)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP %d", ErrIdentityAPIUnavailable, resp.StatusCode)
	}

	var apiResp APIVerifyResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Message != "" {
			return nil, fmt.Errorf("%w: HTTP %d - %s", core.ErrIDTokenRejected, resp.StatusCode, apiResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d - %s", core.ErrIDTokenRejected, resp.StatusCode, preview(body))
	}

	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityAPIInvalidResp, err)
	}

	if !apiResp.Valid {
		return nil, fmt.Errorf("%w: %s", core.ErrIDTokenRejected, apiResp.Message)
	}

	// A valid answer without a subject cannot be mapped to an account.
	if apiResp.Subject == "" || apiResp.Provider == "" {
		return nil, fmt.Errorf(
			"%w: identity API returned valid=true but missing provider or subject",
			ErrIdentityAPIInvalidResp,
		)
	}

	return &core.ExternalIdentity{
		Provider:   apiResp.Provider,
		ProviderID: apiResp.Subject,
		Email:      apiResp.Email,
		Name:       apiResp.Name,
		Picture:    apiResp.Picture,
	}, nil
}

// preview limits a response body to 200 characters for error messages.
func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
