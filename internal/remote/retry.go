package remote

import (
	"context"
	"math/rand"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/noghresod/sync-service-go/internal/apperr"
)

// WithRetry runs fn with exponential backoff on retryable taxonomy errors.
// It is a one-off helper for callers that opt in (bulk catalog sync); the
// resource orchestrator itself never retries.
func WithRetry[T any](ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	var lastErr error
	for i := 0; i <= attempts; i++ {
		if i > 0 {
			delay := baseDelay << (i - 1)
			delay += time.Duration(rand.Int63n(int64(baseDelay)))
			select {
			case <-ctx.Done():
				return zero, apperr.FromTransport(ctx.Err())
			case <-time.After(delay):
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !apperr.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// NewBreaker builds a circuit breaker for bulk sync calls so a flapping
// upstream does not get hammered by every refresh.
func NewBreaker[T any](name string) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
