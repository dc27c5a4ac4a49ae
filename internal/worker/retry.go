package worker

import "time"

// Backoff computes retry delays for sync tasks: exponential growth from Base
// by Factor, clamped at Cap. MaxAttempts bounds how often a task is retried
// before it goes to the dead-letter queue.
type Backoff struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Factor      float64
}

func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 5, Base: 2 * time.Second, Cap: time.Minute, Factor: 2}
}

// Delay returns the wait before the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	factor := b.Factor
	if factor <= 0 {
		factor = 2
	}

	d := base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * factor)
		if b.Cap > 0 && d >= b.Cap {
			return b.Cap
		}
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
