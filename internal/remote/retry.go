package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryConfig configures retry behavior for operations that are safe to
// re-issue: reads always, deletes because the API treats deleting an
// already-deleted node as success. Creates and updates never go through
// this path; re-issuing one after an unacknowledged success would duplicate
// content.
type RetryConfig struct {
	MaxRetries     int           // retry attempts after the first try
	InitialBackoff time.Duration // doubles each retry
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// ErrRetriesExhausted indicates an operation kept failing transiently until
// the attempt budget ran out.
var ErrRetriesExhausted = errors.New("retries exhausted")

// WithRetry runs fn with exponential backoff. Non-transient errors abort
// immediately; only transient failures are retried.
func WithRetry(ctx context.Context, cfg RetryConfig, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffFor(cfg, attempt)):
			}
		}
	}

	return fmt.Errorf("%w for %s: %v", ErrRetriesExhausted, operation, lastErr)
}

func backoffFor(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}
