// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Gateway settings:
//
//	STOCKYARD_API_BASE_URL="https://api.example.com/api"
//	STOCKYARD_ORIGIN="https://admin.example.com"
//	STOCKYARD_REQUEST_TIMEOUT="30s"
//	STOCKYARD_MAX_RETRY_ATTEMPTS="3"
//	STOCKYARD_RETRY_DELAY="5000ms"
//	STOCKYARD_BACKOFF_ALL_VERBS="false"
//
// Cache settings:
//
//	STOCKYARD_CACHE_BACKEND="memory"  # memory, redis
//	STOCKYARD_CACHE_TTL="5m"
//	STOCKYARD_CACHE_MAX_ENTRIES="1024"
//	STOCKYARD_REDIS_URL="redis://localhost:6379/0"
//
// Credentials:
//
//	STOCKYARD_CREDENTIALS_FILE="~/.config/stockyard/credentials.yaml"
//	STOCKYARD_CREDENTIALS_WATCH="true"
//
// Dev server settings:
//
//	STOCKYARD_DEVSERVER_ADDR=":8000"
//	STOCKYARD_DEVSERVER_DRIVER="sqlite3"  # sqlite3, postgres
//	STOCKYARD_DEVSERVER_DSN="file::memory:?cache=shared"
//	STOCKYARD_DEVSERVER_TOKENS="dev-token"
//	STOCKYARD_DEVSERVER_AUDIT_DIR="/var/log/stockyard"  # empty: audit to the log only
//
// Observability settings:
//
//	STOCKYARD_LOG_LEVEL="info"  # debug, info, warn, error
//	STOCKYARD_METRICS_ENABLED="true"
//	STOCKYARD_OTEL_ENABLED="true"
//	STOCKYARD_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("API: %s\n", cfg.Gateway.APIBaseURL)
//	fmt.Printf("Cache: %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL)
//
// # Related Packages
//
//   - pkg/gateway: Uses gateway and cache configuration
//   - pkg/observability: Uses observability configuration
//   - pkg/cli and cmd/stockyard-devserver: apply flag overrides on top
package config
