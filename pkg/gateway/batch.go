package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/platinummonkey/stockyard/pkg/async"
)

// BatchRequest is one entry of a Batch call
type BatchRequest struct {
	Method   string
	Endpoint string
	Data     any
	Options  *Options
}

// BatchResult holds the outcome of one BatchRequest
type BatchResult struct {
	Data json.RawMessage
	Err  error
}

// OK reports whether the request succeeded
func (r BatchResult) OK() bool {
	return r.Err == nil
}

// Batch runs requests concurrently and returns one result per request, in
// order. It never fails as a whole.
func (c *Client) Batch(ctx context.Context, reqs []BatchRequest) []BatchResult {
	results := async.Collect(ctx, reqs, c.cfg.BatchConcurrency, func(ctx context.Context, r BatchRequest) (json.RawMessage, error) {
		return c.Request(ctx, r.Method, r.Endpoint, r.Data, r.Options)
	})

	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{Data: r.Value, Err: r.Err}
	}
	return out
}

// WithRetry calls fn up to maxRetries times, sleeping baseDelay*2^(attempt-1)
// between attempts, and returns the last error once attempts run out.
func WithRetry[T any](ctx context.Context, fn func(context.Context) (T, error), maxRetries int, baseDelay time.Duration) (T, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == maxRetries {
			break
		}

		timer := time.NewTimer(baseDelay * time.Duration(1<<(attempt-1)))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		}
	}

	var zero T
	return zero, err
}
