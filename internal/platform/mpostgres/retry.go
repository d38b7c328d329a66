package mpostgres

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// serializationFailure is Postgres SQLSTATE 40001.
const serializationFailure = "40001"

// IsSerializationFailure reports whether err is a retryable Postgres
// serialization failure.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

// RetryOptions bounds the retry loop used by WithRetry.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryOptions mirrors a conservative bounded retry: 3 attempts,
// 10ms base delay with full jitter.
var DefaultRetryOptions = RetryOptions{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}

// WithRetry runs fn, retrying on serialization failures up to opts.MaxAttempts
// times with jittered backoff. Any other error, or a context cancellation, is
// returned immediately.
func WithRetry(ctx context.Context, opts RetryOptions, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsSerializationFailure(lastErr) {
			return lastErr
		}

		delay := opts.BaseDelay * time.Duration(1<<attempt)
		jitter := time.Duration(rand.Int63n(int64(delay) + 1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter):
		}
	}

	return lastErr
}
