package shipping

import (
	"context"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = time.Second
)

// Retry invokes an idempotent operation up to maxAttempts times, waiting
// baseDelay × 2^attempt between failures. The last attempt's error is
// returned unchanged — never wrapped, never swallowed. It must not be used
// for calls with purchase side effects.
func Retry[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBase
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return zero, lastErr
}
