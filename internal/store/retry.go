package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// isRetriable returns true for errors that indicate a transient conflict:
// our own ErrConflict, or SQLite telling us another process holds the
// write lock.
func isRetriable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// WithRetry executes fn, retrying up to maxRetries times on transient
// conflicts. Retries use jittered exponential backoff starting at baseDelay.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}
