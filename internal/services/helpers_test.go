package services

import (
	"context"
	"testing"
	"time"

	"github.com/pedalsync/linkgate/internal/cache"
	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/core"
	"github.com/pedalsync/linkgate/internal/metrics"
	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/store"
	"github.com/pedalsync/linkgate/internal/token"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	// Use in-memory SQLite database for testing
	s, err := store.New(context.Background(), config.DatabaseDriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConfig() *config.Config {
	return &config.Config{
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
}

// testEnv wires every service over a fresh SQLite store, in-memory KV
// caches and a fake clock.
type testEnv struct {
	store    *store.Store
	clock    *clockwork.FakeClock
	cfg      *config.Config
	kv       *cache.MemoryCache[string]
	counters *cache.MemoryCache[int64]
	limiter  *RateLimiter
	tokens   *TokenService
	registry *DeviceRegistry
	users    *UserService
	flow     *DeviceFlowService
}

func newTestEnv(t *testing.T, verifier core.IdentityVerifier) *testEnv {
	t.Helper()

	env := &testEnv{
		store: setupTestStore(t),
		clock: clockwork.NewFakeClockAt(testStart),
		cfg:   testConfig(),
	}
	log := zerolog.Nop()
	m := metrics.NewNoopMetrics()

	env.kv = cache.NewMemoryCache[string](cache.WithClock(env.clock))
	env.counters = cache.NewMemoryCache[int64](cache.WithClock(env.clock))
	userCache := cache.NewMemoryCache[models.User](cache.WithClock(env.clock))

	provider := token.NewLocalTokenProvider(env.cfg, env.clock)
	env.limiter = NewRateLimiter(env.counters, env.cfg.MinPollInterval)
	env.tokens = NewTokenService(env.store, provider, env.kv, nil, m, env.clock, log)
	env.registry = NewDeviceRegistry(env.store, env.tokens, nil, m, env.clock, log)
	env.users = NewUserService(env.store, verifier, userCache, env.cfg.UserCacheTTL, log)
	env.flow = NewDeviceFlowService(
		env.store, env.cfg, env.limiter, env.tokens, env.registry, env.users,
		nil, m, env.clock, log,
	)
	return env
}

func createTestUser(t *testing.T, s *store.Store, id string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       id,
		Email:    id + "@example.com",
		Name:     "Rider " + id,
		Provider: "test",
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

type fakeVerifier struct {
	identity *core.ExternalIdentity
	err      error
	calls    int
}

func (f *fakeVerifier) VerifyIDToken(_ context.Context, _ string) (*core.ExternalIdentity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}
