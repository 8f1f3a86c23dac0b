// Package deviceclient is the head-unit side of the linking protocol: it
// requests a device code, polls until the rider approves it on their phone
// and keeps the access token fresh afterwards.
package deviceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/jonboulle/clockwork"
)

// slowDownStep is added to the poll interval every time the server answers slow_down.
const slowDownStep = 5 * time.Second

var (
	// ErrExpiredToken means the device code expired (or was never known);
	// the device has to request a new one.
	ErrExpiredToken = errors.New("device code expired")
	// ErrDeviceRevoked means the device was unlinked from the account and
	// must go through linking again.
	ErrDeviceRevoked = errors.New("device revoked")
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Description, e.Status)
}

// DeviceCode is the answer to a linking request.
type DeviceCode struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Tokens is the token pair handed out once the device is linked.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user"`
}

// AccessToken is the result of a refresh. The refresh token is not rotated.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code        string `json:"code"`
		Description string `json:"error_description"`
	} `json:"error"`
}

// Client talks to the linking service on behalf of one head unit.
type Client struct {
	baseURL    string
	deviceID   string
	httpClient *http.Client
	http       *retry.Client
	clock      clockwork.Clock

	// OnPending is called after every authorization_pending answer while polling.
	OnPending func()
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Retries are layered on top.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock sets the clock used for poll waits and deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New returns a client for the service at baseURL acting as deviceID.
func New(baseURL, deviceID string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if deviceID == "" {
		return nil, errors.New("device ID is required")
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	hc := *base
	hc.Transport = deviceHeader{next: base.Transport, deviceID: deviceID}

	rc, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(&hc),
		retry.WithMaxRetries(3),
		retry.WithInitialRetryDelay(500*time.Millisecond),
		retry.WithMaxRetryDelay(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	c.http = rc
	return c, nil
}

// deviceHeader stamps every request with the device ID. The refresh
// endpoint uses it to check that the device is still linked.
type deviceHeader struct {
	next     http.RoundTripper
	deviceID string
}

func (t deviceHeader) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("X-Device-ID", t.deviceID)
	return next.RoundTrip(req)
}

// RequestCode starts linking. Asking again while a code is still valid
// returns the same code.
func (c *Client) RequestCode(ctx context.Context, deviceName string) (*DeviceCode, error) {
	var dc DeviceCode
	err := c.post(ctx, "/auth/device/code", map[string]string{
		"device_id":   c.deviceID,
		"device_name": deviceName,
	}, &dc)
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// WaitForTokens polls until the code is approved, it expires, or ctx ends.
// It honours the advertised interval and backs off on slow_down.
func (c *Client) WaitForTokens(ctx context.Context, dc *DeviceCode) (*Tokens, error) {
	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := c.clock.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(interval):
		}

		if dc.ExpiresIn > 0 && !c.clock.Now().Before(deadline) {
			return nil, ErrExpiredToken
		}

		tokens, err := c.PollOnce(ctx, dc.DeviceCode)
		if err == nil {
			return tokens, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		switch apiErr.Code {
		case "authorization_pending":
			if c.OnPending != nil {
				c.OnPending()
			}
		case "slow_down":
			interval += slowDownStep
		default:
			return nil, err
		}
	}
}

// PollOnce exchanges the device code for tokens a single time.
// An expired or unknown code yields ErrExpiredToken.
func (c *Client) PollOnce(ctx context.Context, deviceCode string) (*Tokens, error) {
	var tokens Tokens
	err := c.post(ctx, "/auth/device/token", map[string]string{"device_code": deviceCode}, &tokens)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "expired_token" {
		return nil, fmt.Errorf("%w: %s", ErrExpiredToken, apiErr.Description)
	}
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh trades a refresh token for a new access token. ErrDeviceRevoked
// means the stored tokens are useless and the device must link again.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	var at AccessToken
	err := c.post(ctx, "/auth/refresh", map[string]string{"refresh_token": refreshToken}, &at)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden && apiErr.Code == "DEVICE_REVOKED" {
		return nil, fmt.Errorf("%w: %s", ErrDeviceRevoked, apiErr.Description)
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// Logout revokes the refresh token. It reports whether anything was revoked.
func (c *Client) Logout(ctx context.Context, refreshToken string) (bool, error) {
	var out struct {
		Revoked bool `json:"revoked"`
	}
	if err := c.post(ctx, "/auth/logout", map[string]string{"refresh_token": refreshToken}, &out); err != nil {
		return false, err
	}
	return out.Revoked, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.http.Post(
		ctx,
		c.baseURL+path,
		retry.WithBody("application/json", bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("POST %s: failed to read response: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("POST %s: unexpected response (HTTP %d): %w", path, resp.StatusCode, err)
	}
	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "unknown_error"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Description = env.Error.Description
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
