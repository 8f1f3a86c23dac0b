package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pedalsync/linkgate/internal/cache"
	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/core"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/middleware"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/services"
	"github.com/pedalsync/linkgate/internal/store"
	"github.com/pedalsync/linkgate/internal/token"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testDeviceID = "dev-00000001"

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	identity *core.ExternalIdentity
	err      error
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*core.ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type failingCheck struct{}

func (failingCheck) Health(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	router   *gin.Engine
	store    *store.Store
	clock    *clockwork.FakeClock
	tokens   *services.TokenService
	verifier *fakeVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s, err := store.New(context.Background(), config.DatabaseDriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{
		BaseURL:                "https://app.example.com",
		JWTAccessSecret:        "test-access-secret",
		JWTRefreshSecret:       "test-refresh-secret",
		JWTIssuer:              "api",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		DeviceCodeExpiration:   10 * time.Minute,
		PollingInterval:        5,
		MinPollInterval:        4 * time.Second,
		VerifyRateLimit:        20,
		VerifyRateWindow:       5 * time.Minute,
		UserCacheTTL:           5 * time.Minute,
	}

	clock := clockwork.NewFakeClockAt(testStart)
	log := zerolog.Nop()
	m := metrics.NewNoopMetrics()
	verifier := &fakeVerifier{identity: &core.ExternalIdentity{
		Provider:   "google",
		ProviderID: "google-sub-1",
		Email:      "rider@example.com",
		Name:       "Rider",
	}}

	kv := cache.NewMemoryCache[string](cache.WithClock(clock))
	counters := cache.NewMemoryCache[int64](cache.WithClock(clock))
	userCache := cache.NewMemoryCache[models.User](cache.WithClock(clock))

	provider := token.NewLocalTokenProvider(cfg, clock)
	limiter := services.NewRateLimiter(counters, cfg.MinPollInterval)
	tokens := services.NewTokenService(s, provider, kv, nil, m, clock, log)
	registry := services.NewDeviceRegistry(s, tokens, nil, m, clock, log)
	users := services.NewUserService(s, verifier, userCache, cfg.UserCacheTTL, log)
	flow := services.NewDeviceFlowService(s, cfg, limiter, tokens, registry, users, nil, m, clock, log)

	device := NewDeviceHandler(flow, log)
	session := NewSessionHandler(tokens, flow, log)
	account := NewAccountHandler(registry, users, log)
	health := NewHealthHandler(map[string]HealthChecker{"database": s}, log)

	r := gin.New()
	r.Use(util.RequestMetadataMiddleware())
	r.GET("/health", health.Health)

	requireAuth := middleware.RequireAccessToken(tokens)
	a := r.Group("/auth")
	a.POST("/device/code", device.DeviceCode)
	a.POST("/device/token", device.Token)
	a.POST("/device/authorize", requireAuth, device.Authorize)
	a.GET("/device/verify", device.Verify)
	a.POST("/refresh", session.Refresh)
	a.POST("/logout", session.Logout)
	a.POST("/logout/all", requireAuth, session.LogoutAll)
	a.POST("/mobile", session.Mobile)
	a.GET("/devices", requireAuth, account.ListDevices)
	a.DELETE("/devices/:id", requireAuth, account.UnlinkDevice)
	a.GET("/me", requireAuth, account.Me)

	return &testServer{
		router:   r,
		store:    s,
		clock:    clock,
		tokens:   tokens,
		verifier: verifier,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code        string `json:"code"`
		Description string `json:"error_description"`
	} `json:"error"`
}

type response struct {
	status int
	header http.Header
	body   envelope
}

// data decodes the success payload into v.
func (r response) data(t *testing.T, v any) {
	t.Helper()
	require.True(t, r.body.Success, "expected success envelope, got %+v", r.body.Error)
	require.NoError(t, json.Unmarshal(r.body.Data, v))
}

func (r response) errorCode() string {
	if r.body.Error == nil {
		return ""
	}
	return r.body.Error.Code
}

type requestOption func(*http.Request)

func withBearer(accessToken string) requestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

func withHeader(key, value string) requestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) response {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	res := response{status: w.Code, header: w.Header()}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.body), "body: %s", w.Body.String())
	return res
}

func (ts *testServer) createUser(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, ts.store.CreateUser(context.Background(), &models.User{
		ID:       id,
		Email:    id + "@example.com",
		Name:     "Rider " + id,
		Provider: "test",
	}))
}

// accessTokenFor signs an access token for an existing user, as the mobile
// app holds after signing in.
func (ts *testServer) accessTokenFor(t *testing.T, userID string) string {
	t.Helper()
	user, err := ts.store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	pair, err := ts.tokens.CreateTokens(user)
	require.NoError(t, err)
	return pair.AccessToken
}

type deviceCodeData struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type tokenData struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	User         models.Profile `json:"user"`
}

// linkDevice runs the whole device-code flow for userID and returns the
// issued tokens.
func (ts *testServer) linkDevice(t *testing.T, userID, deviceID string) tokenData {
	t.Helper()

	res := ts.do(t, http.MethodPost, "/auth/device/code", gin.H{
		"device_id":   deviceID,
		"device_name": "Garage bike",
	})
	require.Equal(t, http.StatusOK, res.status)
	var code deviceCodeData
	res.data(t, &code)

	res = ts.do(t, http.MethodPost, "/auth/device/authorize",
		gin.H{"user_code": code.UserCode},
		withBearer(ts.accessTokenFor(t, userID)),
	)
	require.Equal(t, http.StatusOK, res.status)

	ts.clock.Advance(5 * time.Second)
	res = ts.do(t, http.MethodPost, "/auth/device/token", gin.H{"device_code": code.DeviceCode})
	require.Equal(t, http.StatusOK, res.status)

	var tokens tokenData
	res.data(t, &tokens)
	return tokens
}
