package poller

import "time"

// Backoff tracks the sleep between poll cycles. It starts at the base interval,
// doubles on every faulted cycle up to the cap, and snaps back to base on success.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff at its base interval. max below base is raised to base.
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, current: base}
}

// Current returns the interval the next sleep would use.
func (b *Backoff) Current() time.Duration { return b.current }

// Reset returns to the base interval.
func (b *Backoff) Reset() time.Duration {
	b.current = b.base
	return b.current
}

// Fail doubles the interval, capped at max.
func (b *Backoff) Fail() time.Duration {
	if b.current > b.max/2 {
		b.current = b.max
	} else {
		b.current *= 2
	}
	return b.current
}
