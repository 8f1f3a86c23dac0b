package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a configuration that passes Validate; cases mutate a copy.
func validConfig() *Config {
	return &Config{
		DatabaseDriver:         DatabaseDriverSQLite,
		JWTAccessSecret:        "access-secret",
		JWTRefreshSecret:       "refresh-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		DeviceCodeExpiration:   10 * time.Minute,
		PollingInterval:        5,
		KVStore:                KVStoreMemory,
		UserCacheType:          UserCacheTypeMemory,
		UserCacheTTL:           5 * time.Minute,
		RateLimitStore:         RateLimitStoreMemory,
		IdentityAPIAuthMode:    IdentityAuthModeNone,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid memory stores",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name: "valid redis stores",
			mutate: func(c *Config) {
				c.KVStore = KVStoreRedis
				c.RateLimitStore = RateLimitStoreRedis
				c.UserCacheType = UserCacheTypeRedis
				c.RedisAddr = "localhost:6379"
			},
			expectError: false,
		},
		{
			name:        "invalid rate limit store - typo",
			mutate:      func(c *Config) { c.RateLimitStore = "reddis" },
			expectError: true,
			errorMsg:    `invalid RATE_LIMIT_STORE value: "reddis"`,
		},
		{
			name:        "invalid rate limit store - uppercase",
			mutate:      func(c *Config) { c.RateLimitStore = "MEMORY" },
			expectError: true,
			errorMsg:    `invalid RATE_LIMIT_STORE value: "MEMORY"`,
		},
		{
			name: "redis rate limit store without redis address",
			mutate: func(c *Config) {
				c.EnableRateLimit = true
				c.RateLimitStore = RateLimitStoreRedis
			},
			expectError: true,
			errorMsg:    `RATE_LIMIT_STORE="redis" requires REDIS_ADDR`,
		},
		{
			name: "redis rate limit store ignored when rate limiting disabled",
			mutate: func(c *Config) {
				c.EnableRateLimit = false
				c.RateLimitStore = RateLimitStoreRedis
			},
			expectError: false,
		},
		{
			name:        "invalid kv store",
			mutate:      func(c *Config) { c.KVStore = "etcd" },
			expectError: true,
			errorMsg:    `invalid KV_STORE value: "etcd"`,
		},
		{
			name:        "redis kv store without redis address",
			mutate:      func(c *Config) { c.KVStore = KVStoreRedis },
			expectError: true,
			errorMsg:    `KV_STORE="redis" requires REDIS_ADDR`,
		},
		{
			name:        "invalid database driver",
			mutate:      func(c *Config) { c.DatabaseDriver = "mysql" },
			expectError: true,
			errorMsg:    `invalid DATABASE_DRIVER value: "mysql"`,
		},
		{
			name:        "missing refresh secret",
			mutate:      func(c *Config) { c.JWTRefreshSecret = "" },
			expectError: true,
			errorMsg:    "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required",
		},
		{
			name:        "identical secrets rejected",
			mutate:      func(c *Config) { c.JWTRefreshSecret = c.JWTAccessSecret },
			expectError: true,
			errorMsg:    "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ",
		},
		{
			name:        "zero access token expiration",
			mutate:      func(c *Config) { c.AccessTokenExpiration = 0 },
			expectError: true,
			errorMsg:    "ACCESS_TOKEN_EXPIRATION must be a positive duration",
		},
		{
			name:        "negative device code expiration",
			mutate:      func(c *Config) { c.DeviceCodeExpiration = -time.Second },
			expectError: true,
			errorMsg:    "DEVICE_CODE_EXPIRATION must be a positive duration",
		},
		{
			name:        "zero polling interval",
			mutate:      func(c *Config) { c.PollingInterval = 0 },
			expectError: true,
			errorMsg:    "invalid POLLING_INTERVAL value: 0",
		},
		{
			name:        "invalid identity auth mode",
			mutate:      func(c *Config) { c.IdentityAPIAuthMode = "oauth" },
			expectError: true,
			errorMsg:    `invalid IDENTITY_API_AUTH_MODE value: "oauth"`,
		},
		{
			name:        "metrics without gauge interval",
			mutate:      func(c *Config) { c.MetricsEnabled = true },
			expectError: true,
			errorMsg:    "METRICS_GAUGE_UPDATE_INTERVAL must be a positive duration",
		},
		{
			name: "production with default secret",
			mutate: func(c *Config) {
				c.IsProduction = true
				c.JWTAccessSecret = "access-secret-change-in-production"
			},
			expectError: true,
			errorMsg:    "JWT_ACCESS_SECRET must be set in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.KVStore = "bogus"
	cfg.UserCacheType = "bogus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid KV_STORE value: "bogus"`)
	assert.Contains(t, err.Error(), `invalid USER_CACHE_TYPE value: "bogus"`)
}

func TestUserCacheValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid redis-aside user cache with redis address",
			mutate: func(c *Config) {
				c.UserCacheType = UserCacheTypeRedisAside
				c.UserCacheClientTTL = 30 * time.Second
				c.RedisAddr = "localhost:6379"
			},
			expectError: false,
		},
		{
			name:        "invalid user cache type",
			mutate:      func(c *Config) { c.UserCacheType = "invalid" },
			expectError: true,
			errorMsg:    `invalid USER_CACHE_TYPE value: "invalid"`,
		},
		{
			name:        "redis user cache without redis address",
			mutate:      func(c *Config) { c.UserCacheType = UserCacheTypeRedis },
			expectError: true,
			errorMsg:    `USER_CACHE_TYPE="redis" requires REDIS_ADDR`,
		},
		{
			name:        "zero UserCacheTTL rejected",
			mutate:      func(c *Config) { c.UserCacheTTL = 0 },
			expectError: true,
			errorMsg:    "USER_CACHE_TTL must be a positive duration",
		},
		{
			name: "zero UserCacheClientTTL rejected for redis-aside",
			mutate: func(c *Config) {
				c.UserCacheType = UserCacheTypeRedisAside
				c.RedisAddr = "localhost:6379"
			},
			expectError: true,
			errorMsg:    "USER_CACHE_CLIENT_TTL must be a positive duration",
		},
		{
			name:        "zero UserCacheClientTTL allowed for memory",
			mutate:      func(c *Config) { c.UserCacheClientTTL = 0 },
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStoreConstants(t *testing.T) {
	assert.Equal(t, "memory", RateLimitStoreMemory)
	assert.Equal(t, "redis", RateLimitStoreRedis)
	assert.Equal(t, "memory", KVStoreMemory)
	assert.Equal(t, "redis", KVStoreRedis)
	assert.Equal(t, "memory", UserCacheTypeMemory)
	assert.Equal(t, "redis", UserCacheTypeRedis)
	assert.Equal(t, "redis-aside", UserCacheTypeRedisAside)
}

func TestDeviceFlowDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.DeviceCodeExpiration)
	assert.Equal(t, 5, cfg.PollingInterval)
	assert.Equal(t, 4*time.Second, cfg.MinPollInterval)
	assert.Equal(t, 20, cfg.VerifyRateLimit)
	assert.Equal(t, 5*time.Minute, cfg.VerifyRateWindow)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenExpiration)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenExpiration)
	assert.Equal(t, "api", cfg.JWTIssuer)
	assert.NotEqual(t, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("LINKGATE_TEST_BOOL", tt.value)
			assert.Equal(t, tt.expected, getEnvBool("LINKGATE_TEST_BOOL", !tt.expected))
		})
	}
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("LINKGATE_TEST_INT", "abc")
	assert.Equal(t, 7, getEnvInt("LINKGATE_TEST_INT", 7))

	t.Setenv("LINKGATE_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("LINKGATE_TEST_INT", 7))
}
