// Package safego launches goroutines that cannot take the process down with a panic.
package safego

import (
	"context"
	"fmt"
	"log/slog"
)

// Go launches fn in a new goroutine, recovering and logging any panic.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}

// Await runs fn in its own goroutine and waits for either its result or the
// end of ctx, whichever comes first. A panic inside fn is returned as an error.
//
// It exists for blocking client libraries that take no context: the caller gets
// control back on cancellation, while fn keeps running until the library returns.
func Await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn()
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
