package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/stockyard/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Gateway configuration
	Gateway GatewayConfig

	// Cache configuration
	Cache CacheConfig

	// Credentials configuration
	Credentials CredentialsConfig

	// Dev server configuration
	DevServer DevServerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// GatewayConfig holds the request gateway settings
type GatewayConfig struct {
	APIBaseURL string
	// Origin of the page issuing requests; drives the Origin and CORS hint headers
	Origin           string
	RequestTimeout   time.Duration
	MaxRetryAttempts int
	RetryDelay       time.Duration
	BackoffAllVerbs  bool
	BatchConcurrency int
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Backend       string // memory or redis
	TTL           time.Duration
	MaxEntries    int
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// CredentialsConfig holds token storage settings
type CredentialsConfig struct {
	File  string
	Watch bool
}

// DevServerConfig holds reference backend settings
type DevServerConfig struct {
	Addr     string
	Driver   string // sqlite3 or postgres
	DSN      string
	Tokens   []string
	Seed     bool
	Shutdown time.Duration
	// AuditDir receives the JSON-lines audit log; empty logs audit events only
	AuditDir string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// Defaults mirrored by the dashboard backend contract
const (
	DefaultCacheTTL         = 5 * time.Minute
	DefaultMaxRetryAttempts = 3
	DefaultRetryDelay       = 5000 * time.Millisecond
)

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Gateway:       loadGatewayConfig(),
		Cache:         loadCacheConfig(),
		Credentials:   loadCredentialsConfig(),
		DevServer:     loadDevServerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadGatewayConfig loads gateway configuration from environment
func loadGatewayConfig() GatewayConfig {
	return GatewayConfig{
		APIBaseURL:       getEnv("STOCKYARD_API_BASE_URL", "http://localhost:8000/api"),
		Origin:           getEnv("STOCKYARD_ORIGIN", ""),
		RequestTimeout:   getEnvDuration("STOCKYARD_REQUEST_TIMEOUT", 30*time.Second),
		MaxRetryAttempts: getEnvInt("STOCKYARD_MAX_RETRY_ATTEMPTS", DefaultMaxRetryAttempts),
		RetryDelay:       getEnvDuration("STOCKYARD_RETRY_DELAY", DefaultRetryDelay),
		BackoffAllVerbs:  getEnvBool("STOCKYARD_BACKOFF_ALL_VERBS", false),
		BatchConcurrency: getEnvInt("STOCKYARD_BATCH_CONCURRENCY", 8),
	}
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:       strings.ToLower(getEnv("STOCKYARD_CACHE_BACKEND", "memory")),
		TTL:           getEnvDuration("STOCKYARD_CACHE_TTL", DefaultCacheTTL),
		MaxEntries:    getEnvInt("STOCKYARD_CACHE_MAX_ENTRIES", 1024),
		RedisURL:      getEnv("STOCKYARD_REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword: getEnv("STOCKYARD_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("STOCKYARD_REDIS_DB", -1),
		RedisPrefix:   getEnv("STOCKYARD_REDIS_PREFIX", "stockyard:cache:"),
	}
}

// loadCredentialsConfig loads token storage configuration from environment
func loadCredentialsConfig() CredentialsConfig {
	return CredentialsConfig{
		File:  getEnv("STOCKYARD_CREDENTIALS_FILE", defaultCredentialsFile()),
		Watch: getEnvBool("STOCKYARD_CREDENTIALS_WATCH", true),
	}
}

// loadDevServerConfig loads reference backend configuration from environment
func loadDevServerConfig() DevServerConfig {
	var tokens []string
	for _, tok := range strings.Split(getEnv("STOCKYARD_DEVSERVER_TOKENS", "dev-token"), ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}

	return DevServerConfig{
		Addr:     getEnv("STOCKYARD_DEVSERVER_ADDR", ":8000"),
		Driver:   getEnv("STOCKYARD_DEVSERVER_DRIVER", "sqlite3"),
		DSN:      getEnv("STOCKYARD_DEVSERVER_DSN", "file::memory:?cache=shared"),
		Tokens:   tokens,
		Seed:     getEnvBool("STOCKYARD_DEVSERVER_SEED", true),
		Shutdown: getEnvDuration("STOCKYARD_DEVSERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		AuditDir: getEnv("STOCKYARD_DEVSERVER_AUDIT_DIR", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("STOCKYARD_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("STOCKYARD_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STOCKYARD_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STOCKYARD_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STOCKYARD_OTEL_SERVICE_NAME", "stockyard"),
		OTelServiceVersion: getEnv("STOCKYARD_OTEL_SERVICE_VERSION", "0.1.0"),
		OTelInsecure:       getEnvBool("STOCKYARD_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Gateway.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if u, err := url.Parse(c.Gateway.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API base URL must be absolute: %q", c.Gateway.APIBaseURL)
	}
	if c.Gateway.MaxRetryAttempts < 1 {
		return fmt.Errorf("max retry attempts must be at least 1")
	}
	if c.Gateway.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if c.Gateway.BatchConcurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	switch c.Cache.Backend {
	case "memory":
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("cache max entries must be at least 1")
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
	}

	switch c.DevServer.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid dev server driver: %s (must be sqlite3 or postgres)", c.DevServer.Driver)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// OTel returns the OpenTelemetry settings in the shape observability expects
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".stockyard-credentials.yaml"
	}
	return filepath.Join(dir, "stockyard", "credentials.yaml")
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
