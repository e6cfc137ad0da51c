package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/platinummonkey/stockyard/pkg/observability"
)

// MemoryStore implements an in-process LRU response cache
type MemoryStore struct {
	cache   *lru.Cache[string, Entry]
	metrics *observability.Metrics
}

// NewMemoryStore creates a store holding at most maxEntries responses.
// metrics may be nil.
func NewMemoryStore(maxEntries int, metrics *observability.Metrics) (*MemoryStore, error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("max entries must be at least 1, got %d", maxEntries)
	}

	c, err := lru.New[string, Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}

	return &MemoryStore{cache: c, metrics: metrics}, nil
}

// Name returns the backend name
func (s *MemoryStore) Name() string { return "memory" }

// Get returns the entry stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidKey
	}
	entry, ok := s.cache.Get(key)
	return entry, ok, nil
}

// Set stores an entry, evicting the least recently used one when full
func (s *MemoryStore) Set(ctx context.Context, entry Entry) error {
	if entry.Key == "" {
		return ErrInvalidKey
	}

	if evicted := s.cache.Add(entry.Key, entry); evicted && s.metrics != nil {
		s.metrics.CacheEvictionsTotal.WithLabelValues(s.Name(), "capacity").Inc()
	}
	s.updateGauge()
	return nil
}

// Delete removes a single entry
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	s.updateGauge()
	return nil
}

// Clear removes entries whose key contains pattern
func (s *MemoryStore) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		n := s.cache.Len()
		s.cache.Purge()
		s.updateGauge()
		return n, nil
	}

	removed := 0
	for _, key := range s.cache.Keys() {
		if strings.Contains(key, pattern) && s.cache.Remove(key) {
			removed++
		}
	}
	s.updateGauge()
	return removed, nil
}

// Keys returns the cached keys in sorted order
func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	keys := s.cache.Keys()
	sort.Strings(keys)
	return keys, nil
}

// Sweep removes entries stored before cutoff
func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, key := range s.cache.Keys() {
		entry, ok := s.cache.Peek(key)
		if ok && entry.StoredAt.Before(cutoff) && s.cache.Remove(key) {
			removed++
		}
	}
	s.updateGauge()
	return removed, nil
}

// Close releases resources
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	s.updateGauge()
	return nil
}

func (s *MemoryStore) updateGauge() {
	if s.metrics != nil {
		s.metrics.CacheEntries.WithLabelValues(s.Name()).Set(float64(s.cache.Len()))
	}
}
