// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and ordered fan-out with per-item errors.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 0, "credentials watcher", func(ctx context.Context) error {
//		return watch(ctx)
//	})
//
// Collect: Bounded, ordered fan-out
//
//	results := async.Collect(ctx, reqs, 8, func(ctx context.Context, r Request) (Response, error) {
//		return do(ctx, r)
//	})
//	for _, r := range results {
//		if r.Err != nil {
//			// handle the failure of this item only
//		}
//	}
//
// # Related Packages
//
//   - pkg/gateway: Uses Collect for Batch
//   - pkg/credentials: Uses SafeGo for the file watcher
package async
