package completion

import (
	"context"
	"time"
)

// Backoff paces retries after transport failures. Delays grow geometrically:
// the first retry waits Base, each later retry multiplies the previous delay
// by Multiplier. A zero Base disables waiting, which keeps tests fast.
type Backoff struct {
	// Base is the delay before the second attempt.
	Base time.Duration
	// Multiplier scales the delay after every further attempt.
	Multiplier float64
	// MaxAttempts bounds the total number of remote calls per Complete,
	// the first attempt included.
	MaxAttempts int
}

// DefaultBackoff returns the standard policy: five attempts spaced 250ms,
// 500ms, 1s and 2s apart.
func DefaultBackoff() Backoff {
	return Backoff{Base: 250 * time.Millisecond, Multiplier: 2, MaxAttempts: 5}
}

// Delay returns the pause after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Base <= 0 {
		return 0
	}
	d := float64(b.Base)
	for i := 1; i < attempt; i++ {
		d *= b.Multiplier
	}
	return time.Duration(d)
}

// sleep waits for d while honoring cancellation. With a non-positive d it
// still reports a cancelled context, so retry loops always observe Done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
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
