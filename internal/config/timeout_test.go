package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDefaultTimeoutValues verifies that timeout configurations have sensible defaults
func TestDefaultTimeoutValues(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.DBInitTimeout, "DB init timeout should be 30s")
	assert.Equal(t, 5*time.Second, cfg.RedisConnTimeout, "Redis connection timeout should be 5s")
	assert.Equal(t, 5*time.Second, cfg.CacheInitTimeout, "Cache init timeout should be 5s")
	assert.Equal(t, 5*time.Second, cfg.CacheCloseTimeout, "Cache close timeout should be 5s")
	assert.Equal(t, 5*time.Second, cfg.ServerShutdownTimeout, "Server shutdown timeout should be 5s")
	assert.Equal(t, 10*time.Second, cfg.AuditShutdownTimeout, "Audit shutdown timeout should be 10s")
}

// TestDurationConfigurationFromEnv verifies that durations can be configured via environment
func TestDurationConfigurationFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		getter   func(*Config) time.Duration
		expected time.Duration
	}{
		{
			name:     "DB_INIT_TIMEOUT",
			envKey:   "DB_INIT_TIMEOUT",
			envValue: "60s",
			getter:   func(c *Config) time.Duration { return c.DBInitTimeout },
			expected: 60 * time.Second,
		},
		{
			name:     "REDIS_CONN_TIMEOUT",
			envKey:   "REDIS_CONN_TIMEOUT",
			envValue: "10s",
			getter:   func(c *Config) time.Duration { return c.RedisConnTimeout },
			expected: 10 * time.Second,
		},
		{
			name:     "SERVER_SHUTDOWN_TIMEOUT",
			envKey:   "SERVER_SHUTDOWN_TIMEOUT",
			envValue: "30s",
			getter:   func(c *Config) time.Duration { return c.ServerShutdownTimeout },
			expected: 30 * time.Second,
		},
		{
			name:     "MIN_POLL_INTERVAL",
			envKey:   "MIN_POLL_INTERVAL",
			envValue: "2500ms",
			getter:   func(c *Config) time.Duration { return c.MinPollInterval },
			expected: 2500 * time.Millisecond,
		},
		{
			name:     "DEVICE_CODE_EXPIRATION",
			envKey:   "DEVICE_CODE_EXPIRATION",
			envValue: "5m",
			getter:   func(c *Config) time.Duration { return c.DeviceCodeExpiration },
			expected: 5 * time.Minute,
		},
		{
			name:     "VERIFY_RATE_WINDOW",
			envKey:   "VERIFY_RATE_WINDOW",
			envValue: "1m",
			getter:   func(c *Config) time.Duration { return c.VerifyRateWindow },
			expected: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envValue)

			cfg := Load()

			assert.Equal(t, tt.expected, tt.getter(cfg), "%s should be configurable via env", tt.envKey)
		})
	}
}

// TestDurationConfigurationInvalidValues verifies that invalid values fall back to defaults
func TestDurationConfigurationInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		getter   func(*Config) time.Duration
		expected time.Duration
	}{
		{
			name:     "DB_INIT_TIMEOUT invalid",
			envKey:   "DB_INIT_TIMEOUT",
			envValue: "invalid",
			getter:   func(c *Config) time.Duration { return c.DBInitTimeout },
			expected: 30 * time.Second,
		},
		{
			name:     "CACHE_INIT_TIMEOUT empty",
			envKey:   "CACHE_INIT_TIMEOUT",
			envValue: "",
			getter:   func(c *Config) time.Duration { return c.CacheInitTimeout },
			expected: 5 * time.Second,
		},
		{
			name:     "ACCESS_TOKEN_EXPIRATION bare number",
			envKey:   "ACCESS_TOKEN_EXPIRATION",
			envValue: "900",
			getter:   func(c *Config) time.Duration { return c.AccessTokenExpiration },
			expected: 15 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envValue)

			cfg := Load()

			assert.Equal(
				t,
				tt.expected,
				tt.getter(cfg),
				"%s should fall back to default on invalid value",
				tt.envKey,
			)
		})
	}
}

// TestTimeoutReasonableValues verifies that timeout values are within reasonable ranges
func TestTimeoutReasonableValues(t *testing.T) {
	cfg := Load()

	timeouts := map[string]time.Duration{
		"DBInitTimeout":         cfg.DBInitTimeout,
		"RedisConnTimeout":      cfg.RedisConnTimeout,
		"CacheInitTimeout":      cfg.CacheInitTimeout,
		"CacheCloseTimeout":     cfg.CacheCloseTimeout,
		"ServerShutdownTimeout": cfg.ServerShutdownTimeout,
		"AuditShutdownTimeout":  cfg.AuditShutdownTimeout,
	}

	for name, d := range timeouts {
		assert.GreaterOrEqual(t, d, time.Second, "%s should be at least 1s", name)
		assert.LessOrEqual(t, d, 5*time.Minute, "%s should be reasonable", name)
	}
}
