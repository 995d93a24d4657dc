// Package resilience bounds how long a single blocking call may run.
package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when an operation exceeds its timeout
var ErrTimeout = errors.New("operation timed out")

// Call runs fn with a deadline of timeout and returns its result.
// A non-positive timeout runs fn inline without a deadline.
// When the deadline passes first, Call returns ErrTimeout and the goroutine running fn
// is left to observe ctx cancellation on its own.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(timeoutCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-timeoutCtx.Done():
		var zero T
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, timeoutCtx.Err()
	}
}

// WithTimeout executes fn with a timeout.
// If fn does not complete within the timeout duration, it returns ErrTimeout.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := Call(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// IsTimeout reports whether err is, or wraps, ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
