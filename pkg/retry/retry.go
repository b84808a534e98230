// Package retry holds the exponential backoff shared by the outbound HTTP
// client and the menu repository.
package retry

import (
	"context"
	"math"
	"time"
)

// Backoff returns the delay before attempt+1 given that attempt (1-based)
// just failed: base * 2^(attempt-1), capped at max when max > 0.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if max > 0 && (d > max || d <= 0) {
		return max
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first. It returns
// ctx.Err() when the wait was cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
