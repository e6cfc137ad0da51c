package gateway

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingServer counts requests and delegates to handler
type countingServer struct {
	*httptest.Server
	hits    atomic.Int32
	handler http.HandlerFunc
}

func newCountingServer(t *testing.T, handler http.HandlerFunc) *countingServer {
	t.Helper()
	s := &countingServer{handler: handler}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *countingServer) Hits() int {
	return int(s.hits.Load())
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

// newTestClient builds a client against srv with a fake clock
func newTestClient(t *testing.T, srv *countingServer, mutate func(*Config), opts ...Option) (*Client, *fakeClock) {
	t.Helper()

	cfg := DefaultConfig(srv.URL + "/api")
	cfg.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newFakeClock()
	client, err := New(cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return client, clock
}
