package database

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// isBusyError reports whether err is SQLite telling us another connection
// holds a lock. It matches the symbolic names and the bare result codes so
// it covers both the cgo and the transpiled builds of the driver.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "(5)") || // SQLITE_BUSY result code
		strings.Contains(msg, "(6)") // SQLITE_LOCKED result code
}

// retryBusy runs fn up to maxRetries+1 times for as long as it keeps hitting
// lock contention, backing off between attempts. Any other error returns
// immediately.
func retryBusy(ctx context.Context, maxRetries int, fn func() error) error {
	if maxRetries <= 0 {
		return fn()
	}

	op := func() error {
		err := fn()
		if err != nil && !isBusyError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.RandomizationFactor = 0.25
	eb.Multiplier = 2
	eb.MaxInterval = 2 * time.Second
	eb.MaxElapsedTime = 0 // the attempt budget is the only limit

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx))
	if err != nil && isBusyError(err) && ctx.Err() != nil {
		// backoff hands back the last busy error when the context dies
		// mid-wait. The caller cancelled, so report that instead.
		return ctx.Err()
	}
	return err
}

// retryValue is retryBusy for calls that produce a value.
func retryValue[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	var out T
	err := retryBusy(ctx, maxRetries, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
