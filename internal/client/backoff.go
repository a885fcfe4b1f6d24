package client

import "time"

// Default reconnect backoff bounds.
const (
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffCap  = 30 * time.Second
)

// backoff produces exponential reconnect delays:
// delay(k) = min(base * 2^k, cap). Reset on every successful connect.
// Not safe for concurrent use; the connection manager owns it and only
// touches it under its own lock.
type backoff struct {
	base    time.Duration
	cap     time.Duration
	attempt int
}

func newBackoff(base, cap time.Duration) *backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if cap < base {
		cap = DefaultBackoffCap
	}
	return &backoff{base: base, cap: cap}
}

// next returns the delay for the current attempt and advances the
// attempt counter.
func (b *backoff) next() time.Duration {
	// Past ~32 doublings any realistic base exceeds any realistic cap.
	if b.attempt > 32 {
		return b.cap
	}
	d := b.base << uint(b.attempt)
	b.attempt++
	if d <= 0 || d > b.cap {
		return b.cap
	}
	return d
}

// reset returns the sequence to the base delay.
func (b *backoff) reset() {
	b.attempt = 0
}
