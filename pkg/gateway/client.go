package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/platinummonkey/stockyard/pkg/gateway/cache"
	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Defaults matching the dashboard backend contract
const (
	DefaultCacheTTL         = 5 * time.Minute
	DefaultMaxRetryAttempts = 3
	DefaultRetryDelay       = 5000 * time.Millisecond
	DefaultTimeout          = 30 * time.Second
	DefaultBatchConcurrency = 8
	DefaultMaxEntries       = 1024
)

// Config holds gateway settings
type Config struct {
	// BaseURL is prefixed onto relative endpoints
	BaseURL string
	// Origin of the calling page; adds Origin and CORS hint headers when set
	Origin           string
	Timeout          time.Duration
	CacheTTL         time.Duration
	MaxRetryAttempts int
	RetryDelay       time.Duration
	// BackoffAllVerbs extends the failure back-off from GET to every method
	BackoffAllVerbs  bool
	BatchConcurrency int
}

// DefaultConfig returns the reference settings for baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          DefaultTimeout,
		CacheTTL:         DefaultCacheTTL,
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		RetryDelay:       DefaultRetryDelay,
		BatchConcurrency: DefaultBatchConcurrency,
	}
}

// Option configures a Client
type Option func(*Client)

// WithStore sets the response cache backend
func WithStore(store cache.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithTokenStore reads bearer tokens from store and clears them on 401
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
		c.tokenSource = StoreTokenSource{Store: store}
	}
}

// WithTokenSource overrides where bearer tokens come from
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces time.Now for cache freshness and back-off decisions
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is the request gateway. It owns the response cache, the set of
// in-flight GETs and the per-key failure records.
type Client struct {
	cfg  Config
	base *url.URL

	store    cache.Store
	flights  singleflight.Group
	failures *failureTracker

	tokens      TokenStore
	tokenSource oauth2.TokenSource
	httpClient  *http.Client

	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time

	mu        sync.Mutex
	scheduler *cron.Cron
}

// New creates a gateway client. Call Start to schedule the cache sweep.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxRetryAttempts < 1 {
		cfg.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("base URL must be absolute: %q", cfg.BaseURL)
		}
		base = u
	}

	c := &Client{
		cfg:      cfg,
		base:     base,
		failures: newFailureTracker(cfg.MaxRetryAttempts, cfg.RetryDelay),
		logger:   observability.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		store, err := cache.NewMemoryStore(DefaultMaxEntries, c.metrics)
		if err != nil {
			return nil, err
		}
		c.store = store
	}
	if c.tokenSource == nil {
		c.tokens = NewMemoryTokenStore()
		c.tokenSource = StoreTokenSource{Store: c.tokens}
	}

	c.httpClient = instrumentClient(c.httpClient)
	return c, nil
}

func instrumentClient(hc *http.Client) *http.Client {
	var out http.Client
	if hc != nil {
		out = *hc
	}
	transport := out.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	out.Transport = otelhttp.NewTransport(transport)
	out.CheckRedirect = checkRedirect(out.CheckRedirect)
	return &out
}

// Start schedules the periodic cache sweep every CacheTTL
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduler != nil {
		return nil
	}

	scheduler := cron.New()
	spec := fmt.Sprintf("@every %s", c.cfg.CacheTTL)
	if _, err := scheduler.AddFunc(spec, func() {
		defer observability.RecoverPanic(c.logger, "cache sweep")
		if _, err := c.Sweep(context.Background()); err != nil {
			c.logger.WithError(err).Warn("cache sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	scheduler.Start()
	c.scheduler = scheduler

	c.logger.WithField("interval", c.cfg.CacheTTL.String()).Debug("cache sweep scheduled")
	return nil
}

// sharedStore is implemented by backends whose contents outlive this process
type sharedStore interface {
	Shared() bool
}

// Shutdown stops the sweep and drops all gateway state. Entries in a shared
// backend are left for other processes; the connection is closed either way.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	scheduler := c.scheduler
	c.scheduler = nil
	c.mu.Unlock()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.failures.reset()

	var errs []error
	if s, ok := c.store.(sharedStore); !ok || !s.Shared() {
		if _, err := c.store.Clear(ctx, ""); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CacheStats describes the response cache
type CacheStats struct {
	Backend string   `json:"backend"`
	Size    int      `json:"size"`
	Keys    []string `json:"keys"`
}

// CacheStats returns the cached keys
func (c *Client) CacheStats(ctx context.Context) (CacheStats, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	return CacheStats{Backend: c.store.Name(), Size: len(keys), Keys: keys}, nil
}

// ClearCache removes cached responses whose key contains pattern, or all of
// them when pattern is empty
func (c *Client) ClearCache(ctx context.Context, pattern string) (int, error) {
	n, err := c.store.Clear(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	if c.metrics != nil && n > 0 {
		c.metrics.CacheEvictionsTotal.WithLabelValues(c.store.Name(), "cleared").Add(float64(n))
	}
	return n, nil
}

// Sweep evicts entries older than CacheTTL
func (c *Client) Sweep(ctx context.Context) (int, error) {
	n, err := c.store.Sweep(ctx, c.now().Add(-c.cfg.CacheTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache: %w", err)
	}
	if n > 0 {
		if c.metrics != nil {
			c.metrics.CacheEvictionsTotal.WithLabelValues(c.store.Name(), "expired").Add(float64(n))
		}
		c.logger.WithField("evicted", n).Debug("cache sweep")
	}
	return n, nil
}

// FailureAttempts returns the recorded consecutive failures for a method and URL
func (c *Client) FailureAttempts(method, rawURL string) int {
	return c.failures.attempts(method + ":" + rawURL)
}
