package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/stockyard/pkg/observability"
)

const scanBatch = 100

// RedisOptions configures the Redis connection
type RedisOptions struct {
	URL      string
	Password string
	DB       int // negative keeps the DB from the URL
	Prefix   string
	TTL      time.Duration
}

// RedisStore implements a response cache shared between processes
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewRedisClient parses the URL, applies overrides and verifies connectivity
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if opts.Password != "" {
		ropts.Password = opts.Password
	}
	if opts.DB >= 0 {
		ropts.DB = opts.DB
	}

	ropts.DialTimeout = 5 * time.Second
	ropts.ReadTimeout = 3 * time.Second
	ropts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedisStore wraps an existing client. Keys expire after ttl on the server
// side as well; ttl <= 0 disables server-side expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, metrics *observability.Metrics) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		metrics: metrics,
	}
}

// OpenRedisStore connects to Redis and returns a store using opts.Prefix and opts.TTL
func OpenRedisStore(ctx context.Context, opts RedisOptions, metrics *observability.Metrics) (*RedisStore, error) {
	client, err := NewRedisClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client, opts.Prefix, opts.TTL, metrics), nil
}

// Name returns the backend name
func (s *RedisStore) Name() string { return "redis" }

// Shared reports that entries outlive the process that wrote them
func (s *RedisStore) Shared() bool { return true }

// Client exposes the underlying client for health checks
func (s *RedisStore) Client() *redis.Client { return s.client }

// Get returns the entry stored under key
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidKey
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	} else if err != nil {
		return Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entries are dropped so the next request refetches
		s.client.Del(ctx, s.prefix+key)
		if s.metrics != nil {
			s.metrics.CacheEvictionsTotal.WithLabelValues(s.Name(), "corrupt").Inc()
		}
		return Entry{}, false, nil
	}
	entry.Key = key
	return entry, true, nil
}

// Set stores an entry
func (s *RedisStore) Set(ctx context.Context, entry Entry) error {
	if entry.Key == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes a single entry
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Clear removes entries whose key contains pattern
func (s *RedisStore) Clear(ctx context.Context, pattern string) (int, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	var doomed []string
	for _, key := range keys {
		if pattern == "" || strings.Contains(strings.TrimPrefix(key, s.prefix), pattern) {
			doomed = append(doomed, key)
		}
	}
	return s.del(ctx, doomed)
}

// Keys returns the cached keys (without prefix) in sorted order
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, strings.TrimPrefix(key, s.prefix))
	}
	sort.Strings(out)
	return out, nil
}

// Sweep removes entries stored before cutoff
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	var doomed []string
	for _, key := range keys {
		entry, ok, err := s.Get(ctx, strings.TrimPrefix(key, s.prefix))
		if err != nil {
			return 0, err
		}
		if ok && entry.StoredAt.Before(cutoff) {
			doomed = append(doomed, key)
		}
	}
	return s.del(ctx, doomed)
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) scan(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisStore) del(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete failed: %w", err)
	}
	return int(n), nil
}
