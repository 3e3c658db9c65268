package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	maxRetries   = 3
	initialDelay = 1 * time.Second
	maxDelay     = 30 * time.Second
	backoffRate  = 2.0
)

// retryDelay is the first backoff delay; tests shorten it.
var retryDelay = initialDelay

// RetryWithBackoff executes fn with exponential backoff retry logic.
// It makes up to maxRetries attempts, starting at initialDelay (1s), doubling
// after each failed attempt and capping at maxDelay (30s).
//
// Context cancellation is respected before each attempt and during the sleep
// between attempts. Errors wrapped with Permanent are returned without retry.
//
// Returns the last error wrapped with retry count if all attempts fail.
func RetryWithBackoff[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := retryDelay

	for attempt := 0; attempt < maxRetries; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}

		lastErr = err

		// Don't sleep after last attempt
		if attempt < maxRetries-1 {
			select {
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * backoffRate)
				if delay > maxDelay {
					delay = maxDelay
				}
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// permanentError marks an error RetryWithBackoff must return immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff stops on it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isRetryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
