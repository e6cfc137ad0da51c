package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Optional timeout enforcement (timeout <= 0 runs until the parent is done)
// - Error logging
//
// Use this instead of bare `go func()` for background loops such as file watchers.
//
// Example:
//
//	SafeGo(ctx, 0, "credentials watcher", func(ctx context.Context) error {
//	    return store.watch(ctx)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithCancel(parentCtx)
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parentCtx, timeout)
		}
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("task", taskName).
					Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()

		if err := fn(ctx); err != nil {
			logrus.WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Result pairs the value produced for one input with its error.
type Result[T any] struct {
	Value T
	Err   error
}

// Collect runs fn for every item with at most `workers` calls in flight and
// returns one Result per item, in input order. It never fails as a whole: a
// failing or panicking item only sets that item's Err.
//
// Example:
//
//	results := Collect(ctx, urls, 4, func(ctx context.Context, u string) (Page, error) {
//	    return fetch(ctx, u)
//	})
func Collect[In, Out any](ctx context.Context, items []In, workers int, fn func(context.Context, In) (Out, error)) []Result[Out] {
	results := make([]Result[Out], len(items))
	if len(items) == 0 {
		return results
	}

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i].Err = fmt.Errorf("panic: %v", r)
				}
			}()

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Value, results[i].Err = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results
}
