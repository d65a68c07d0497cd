package library

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// retryOnConflict runs fn until it succeeds, fails with something other than eventstore.ErrConcurrencyConflict,
// or maxAttempts is reached. The delay doubles with every attempt: 0, base, 2*base, 4*base, ... plus jitter.
// fn always runs at least once.
func retryOnConflict(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	maxAttempts = max(maxAttempts, 1)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * defaultJitterFactor //nolint:gosec // jitter only

			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !errors.Is(lastErr, eventstore.ErrConcurrencyConflict) {
			return lastErr
		}
	}

	return lastErr
}
