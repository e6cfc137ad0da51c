package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/stockyard/pkg/config"
	"github.com/platinummonkey/stockyard/pkg/credentials"
	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/platinummonkey/stockyard/pkg/gateway/cache"
	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/spf13/cobra"
)

// app holds what every command shares once flags are parsed
type app struct {
	cfg    *config.Config
	logger *observability.Logger
	creds  *credentials.FileStore

	apiURL       string
	credsFile    string
	logLevel     string
	cacheBackend string
}

// Execute runs the root command with ctx
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the stockyard command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "stockyard",
		Short:         "Stockyard dashboard API client",
		Long:          "Stockyard talks to the trading dashboard API: raw requests through the gateway and editing the role permission matrix.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (overrides STOCKYARD_API_BASE_URL)")
	flags.StringVar(&a.credsFile, "credentials", "", "credentials file (overrides STOCKYARD_CREDENTIALS_FILE)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.cacheBackend, "cache", "", "response cache backend: memory or redis")

	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newGetCmd(a),
		newPostCmd(a),
		newPermissionsCmd(a),
		newCacheCmd(a),
	)
	return cmd
}

// setup loads configuration, applies flag overrides and opens the
// credentials file
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.Gateway.APIBaseURL = a.apiURL
	}
	if a.credsFile != "" {
		cfg.Credentials.File = a.credsFile
	}
	if a.logLevel != "" {
		cfg.Observability.LogLevel = observability.ParseLogLevel(a.logLevel)
	}
	if a.cacheBackend != "" {
		cfg.Cache.Backend = a.cacheBackend
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.logger = observability.NewTextLogger(cfg.Observability.LogLevel, cmd.ErrOrStderr())

	a.creds, err = credentials.Open(cfg.Credentials.File, a.logger)
	if err != nil {
		return err
	}
	return nil
}

// withClient builds a gateway client for the duration of fn and shuts it
// down afterwards
func (a *app) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *gateway.Client) error) (err error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, err := newClient(ctx, a.cfg, a.creds, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := client.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil && err == nil {
			err = fmt.Errorf("failed to shut down client: %w", shutdownErr)
		}
	}()

	if a.cfg.Credentials.Watch {
		// Another process may log in or out while a long request runs
		if err := a.creds.Watch(ctx); err != nil {
			a.logger.WithError(err).Warn("credentials will not be reloaded")
		}
	}

	return fn(ctx, client)
}

// newClient maps configuration onto a gateway client and its cache backend
func newClient(ctx context.Context, cfg *config.Config, tokens gateway.TokenStore, logger *observability.Logger) (*gateway.Client, error) {
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := cache.OpenRedisStore(ctx, cache.RedisOptions{
			URL:      cfg.Cache.RedisURL,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.RedisPrefix,
			TTL:      cfg.Cache.TTL,
		}, nil)
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		ms, err := cache.NewMemoryStore(cfg.Cache.MaxEntries, nil)
		if err != nil {
			return nil, err
		}
		store = ms
	}

	client, err := gateway.New(gateway.Config{
		BaseURL:          cfg.Gateway.APIBaseURL,
		Origin:           cfg.Gateway.Origin,
		Timeout:          cfg.Gateway.RequestTimeout,
		CacheTTL:         cfg.Cache.TTL,
		MaxRetryAttempts: cfg.Gateway.MaxRetryAttempts,
		RetryDelay:       cfg.Gateway.RetryDelay,
		BackoffAllVerbs:  cfg.Gateway.BackoffAllVerbs,
		BatchConcurrency: cfg.Gateway.BatchConcurrency,
	},
		gateway.WithStore(store),
		gateway.WithTokenStore(tokens),
		gateway.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	return client, nil
}
