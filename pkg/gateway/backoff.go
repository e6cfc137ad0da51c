package gateway

import (
	"sync"
	"time"
)

type failureRecord struct {
	attempts      int
	lastAttemptAt time.Time
}

// failureTracker blocks a key locally once it has failed maxAttempts times
// and the last failure is more recent than delay. A record older than delay
// is discarded on the next check, so the following call reaches the network.
type failureTracker struct {
	mu          sync.Mutex
	records     map[string]*failureRecord
	maxAttempts int
	delay       time.Duration
}

func newFailureTracker(maxAttempts int, delay time.Duration) *failureTracker {
	return &failureTracker{
		records:     make(map[string]*failureRecord),
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

func (t *failureTracker) blocked(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		return false
	}
	if now.Sub(rec.lastAttemptAt) >= t.delay {
		delete(t.records, key)
		return false
	}
	return rec.attempts >= t.maxAttempts
}

func (t *failureTracker) recordFailure(key string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		rec = &failureRecord{}
		t.records[key] = rec
	}
	rec.attempts++
	rec.lastAttemptAt = now
	return rec.attempts
}

func (t *failureTracker) recordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, key)
}

func (t *failureTracker) attempts(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[key]; ok {
		return rec.attempts
	}
	return 0
}

func (t *failureTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*failureRecord)
}
