package db

import (
	"context"
	"time"

	"jobboard-serverless/internal/observability"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// ReadOnly brands the result of an idempotent read. WithRetry only accepts
// operations returning a ReadOnly value, so a write cannot be handed to the
// retry loop without the author deliberately mislabelling it. Retrying a write
// whose first attempt succeeded but whose acknowledgment was lost would
// duplicate state.
type ReadOnly[T any] struct {
	value T
}

// Read marks a value as the result of an idempotent read.
func Read[T any](value T) ReadOnly[T] {
	return ReadOnly[T]{value: value}
}

func (r ReadOnly[T]) Value() T {
	return r.value
}

// WithRetry runs op up to retries times with a constant delay between
// attempts, logging a warning per failure, and returns the last error
// unchanged once attempts are exhausted. Constant delay keeps the added
// latency bounded at retries times delay. Cancellation of ctx stops the loop
// between attempts.
func WithRetry[T any](ctx context.Context, logger *observability.Logger, name string, retries int, delay time.Duration, op func(context.Context) (ReadOnly[T], error)) (T, error) {
	if retries <= 0 {
		retries = defaultRetries
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result.Value(), nil
		}
		lastErr = err

		logger.Warn("read_retry", map[string]any{
			"operation": name,
			"attempt":   attempt,
			"retries":   retries,
			"error":     err.Error(),
		})

		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
