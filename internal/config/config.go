package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database driver constants
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// KV store constants (refresh-token records and rate-limit counters)
const (
	KVStoreMemory = "memory"
	KVStoreRedis  = "redis"
)

// Rate limit store constants (coarse per-IP throttling)
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// User cache type constants
const (
	UserCacheTypeMemory     = "memory"
	UserCacheTypeRedis      = "redis"
	UserCacheTypeRedisAside = "redis-aside"
)

// Identity API auth mode constants, passed through to go-httpclient
const (
	IdentityAuthModeNone   = "none"
	IdentityAuthModeSimple = "simple"
	IdentityAuthModeHMAC   = "hmac"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	Environment  string // "development" or "production"
	IsProduction bool
	LogLevel     string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Token settings. Access and refresh tokens are signed with separate secrets.
	JWTAccessSecret        string
	JWTRefreshSecret       string
	JWTIssuer              string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration

	// Device code settings
	DeviceCodeExpiration      time.Duration
	PollingInterval           int // seconds, advertised to devices
	MinPollInterval           time.Duration
	DeviceCodeCleanupInterval time.Duration
	VerifyRateLimit           int
	VerifyRateWindow          time.Duration

	// KV store
	KVStore string

	// User cache
	UserCacheType      string
	UserCacheTTL       time.Duration
	UserCacheClientTTL time.Duration

	// Redis (shared by KV store, user cache and rate limiting)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Coarse per-IP rate limiting (requests per minute)
	EnableRateLimit          bool
	RateLimitStore           string
	DeviceCodeRateLimit      int
	TokenRateLimit           int
	RefreshRateLimit         int
	MobileRateLimit          int
	AuthorizeRateLimit       int
	RateLimitCleanupInterval time.Duration

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateInterval time.Duration

	// Audit
	EnableAuditLogging bool
	AuditLogRetention  time.Duration
	AuditLogBufferSize int

	// Identity provider (ID-token verification for direct mobile sign-in)
	IdentityAPIURL           string
	IdentityAPITimeout       time.Duration
	IdentityAPIAuthMode      string
	IdentityAPIAuthSecret    string
	IdentityAPIAuthHeader    string
	IdentityAPIMaxRetries    int
	IdentityAPIRetryDelay    time.Duration
	IdentityAPIMaxRetryDelay time.Duration

	// Timeouts
	DBInitTimeout         time.Duration
	CacheInitTimeout      time.Duration
	CacheCloseTimeout     time.Duration
	ServerShutdownTimeout time.Duration
	AuditShutdownTimeout  time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		Environment:  env,
		IsProduction: env == "production",
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", DatabaseDriverSQLite),
		DatabaseDSN:    getEnv("DATABASE_DSN", "linkgate.db"),

		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", "access-secret-change-in-production"),
		JWTRefreshSecret:       getEnv("JWT_REFRESH_SECRET", "refresh-secret-change-in-production"),
		JWTIssuer:              getEnv("JWT_ISSUER", "api"),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", 15*time.Minute),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 7*24*time.Hour),

		DeviceCodeExpiration:      getEnvDuration("DEVICE_CODE_EXPIRATION", 10*time.Minute),
		PollingInterval:           getEnvInt("POLLING_INTERVAL", 5),
		MinPollInterval:           getEnvDuration("MIN_POLL_INTERVAL", 4*time.Second),
		DeviceCodeCleanupInterval: getEnvDuration("DEVICE_CODE_CLEANUP_INTERVAL", 10*time.Minute),
		VerifyRateLimit:           getEnvInt("VERIFY_RATE_LIMIT", 20),
		VerifyRateWindow:          getEnvDuration("VERIFY_RATE_WINDOW", 5*time.Minute),

		KVStore: getEnv("KV_STORE", KVStoreMemory),

		UserCacheType:      getEnv("USER_CACHE_TYPE", UserCacheTypeMemory),
		UserCacheTTL:       getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		UserCacheClientTTL: getEnvDuration("USER_CACHE_CLIENT_TTL", 30*time.Second),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		DeviceCodeRateLimit:      getEnvInt("DEVICE_CODE_RATE_LIMIT", 10),
		TokenRateLimit:           getEnvInt("TOKEN_RATE_LIMIT", 60),
		RefreshRateLimit:         getEnvInt("REFRESH_RATE_LIMIT", 30),
		MobileRateLimit:          getEnvInt("MOBILE_RATE_LIMIT", 10),
		AuthorizeRateLimit:       getEnvInt("AUTHORIZE_RATE_LIMIT", 20),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 30*time.Second),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),

		IdentityAPIURL:           getEnv("IDENTITY_API_URL", ""),
		IdentityAPITimeout:       getEnvDuration("IDENTITY_API_TIMEOUT", 10*time.Second),
		IdentityAPIAuthMode:      getEnv("IDENTITY_API_AUTH_MODE", IdentityAuthModeNone),
		IdentityAPIAuthSecret:    getEnv("IDENTITY_API_AUTH_SECRET", ""),
		IdentityAPIAuthHeader:    getEnv("IDENTITY_API_AUTH_HEADER", "X-API-Secret"),
		IdentityAPIMaxRetries:    getEnvInt("IDENTITY_API_MAX_RETRIES", 3),
		IdentityAPIRetryDelay:    getEnvDuration("IDENTITY_API_RETRY_DELAY", 1*time.Second),
		IdentityAPIMaxRetryDelay: getEnvDuration("IDENTITY_API_MAX_RETRY_DELAY", 10*time.Second),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		CacheCloseTimeout:     getEnvDuration("CACHE_CLOSE_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		AuditShutdownTimeout:  getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("invalid DATABASE_DRIVER value: %q", c.DatabaseDriver))
	}

	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required"))
	} else if c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}

	if c.AccessTokenExpiration <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRATION must be a positive duration"))
	}
	if c.RefreshTokenExpiration <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRATION must be a positive duration"))
	}
	if c.DeviceCodeExpiration <= 0 {
		errs = append(errs, errors.New("DEVICE_CODE_EXPIRATION must be a positive duration"))
	}
	if c.PollingInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid POLLING_INTERVAL value: %d", c.PollingInterval))
	}

	switch c.KVStore {
	case KVStoreMemory:
	case KVStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("KV_STORE=%q requires REDIS_ADDR", c.KVStore))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid KV_STORE value: %q", c.KVStore))
	}

	switch c.UserCacheType {
	case UserCacheTypeMemory:
	case UserCacheTypeRedis, UserCacheTypeRedisAside:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("USER_CACHE_TYPE=%q requires REDIS_ADDR", c.UserCacheType))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid USER_CACHE_TYPE value: %q", c.UserCacheType))
	}
	if c.UserCacheTTL <= 0 {
		errs = append(errs, errors.New("USER_CACHE_TTL must be a positive duration"))
	}
	if c.UserCacheType == UserCacheTypeRedisAside && c.UserCacheClientTTL <= 0 {
		errs = append(errs, errors.New("USER_CACHE_CLIENT_TTL must be a positive duration"))
	}

	switch c.RateLimitStore {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if c.EnableRateLimit && c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE=%q requires REDIS_ADDR", c.RateLimitStore))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_STORE value: %q", c.RateLimitStore))
	}

	switch c.IdentityAPIAuthMode {
	case IdentityAuthModeNone, IdentityAuthModeSimple, IdentityAuthModeHMAC:
	default:
		errs = append(errs, fmt.Errorf("invalid IDENTITY_API_AUTH_MODE value: %q", c.IdentityAPIAuthMode))
	}

	if c.MetricsEnabled && c.MetricsGaugeUpdateInterval <= 0 {
		errs = append(errs, errors.New("METRICS_GAUGE_UPDATE_INTERVAL must be a positive duration"))
	}

	if c.IsProduction && strings.HasSuffix(c.JWTAccessSecret, "change-in-production") {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set in production"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
