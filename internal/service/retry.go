package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	domainerrors "github.com/circulateapp/circulate-server/internal/errors"
	"github.com/circulateapp/circulate-server/internal/store"
)

const (
	retryMaxAttempts = 4
	retryBaseDelay   = 10 * time.Millisecond
	retryJitter      = 0.3
)

// withRetry executes fn with exponential backoff, retrying only transient
// storage errors such as a busy SQLite database. Domain failures (not found,
// conflicts, unavailable books) fail fast; retrying them cannot change the
// outcome.
//
// Schedule: 0ms, 10ms, 20ms, 40ms with 30% jitter. When all attempts are
// exhausted the caller receives CodeUnavailable so clients know to retry
// later rather than treating the request as rejected.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			// Jitter prevents synchronized retries from colliding again.
			jitter := time.Duration(rand.Float64() * float64(delay) * retryJitter)

			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !store.IsTransient(lastErr) {
			return lastErr
		}
	}

	return domainerrors.Unavailable("storage is temporarily unavailable").WithCause(lastErr)
}

// isDomainError reports whether err carries a domain error code and should
// pass through to the client unchanged.
func isDomainError(err error) bool {
	var domainErr *domainerrors.Error
	return errors.As(err, &domainErr)
}
