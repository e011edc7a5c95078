// Package retry provides a small retry-with-backoff combinator used by all
// outbound service clients, so retry policy is a parameter rather than an
// inlined loop at each call site.
package retry

import (
	"context"
	"time"
)

// Do runs op up to maxAttempts times, sleeping between attempts with linear
// backoff (attempt * base). It stops early when op succeeds or ctx is done.
// maxAttempts below 1 is treated as 1.
func Do(ctx context.Context, maxAttempts int, base time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(time.Duration(attempt) * base):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
