package util

import (
	"context"
	"time"
)

// RetryFunc is told about each failed attempt that will be retried: the
// 1-based attempt number, its error, and the wait before the next one.
type RetryFunc func(attempt int, err error, wait time.Duration)

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. It returns nil on the first success, the last error when every
// attempt fails, or ctx.Err() if ctx ends while waiting.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	return RetryNotify(ctx, maxAttempts, baseDelay, fn, nil)
}

// RetryNotify is Retry with a hook run before each backoff wait. onRetry
// may be nil.
func RetryNotify(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error, onRetry RetryFunc) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
