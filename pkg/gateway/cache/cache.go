package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidKey is returned for empty cache keys
var ErrInvalidKey = errors.New("cache key cannot be empty")

// Entry is one cached GET response
type Entry struct {
	Key      string          `json:"-"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// Fresh reports whether the entry is younger than ttl at now
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Store holds cached responses. Freshness is decided by the caller so that a
// single clock governs TTL checks regardless of backend.
type Store interface {
	// Name identifies the backend in metrics ("memory", "redis")
	Name() string
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
	// Clear removes entries whose key contains pattern; empty pattern removes all
	Clear(ctx context.Context, pattern string) (int, error)
	Keys(ctx context.Context) ([]string, error)
	// Sweep removes entries stored before cutoff
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
