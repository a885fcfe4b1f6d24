// Package testutil provides shared helpers for tether tests.
package testutil

import (
	"context"
	"testing"
	"time"
)

const (
	// DefaultTestTimeout is the fallback timeout for tests that exercise
	// live socket connections.
	DefaultTestTimeout = 30 * time.Second

	// DefaultTestBuffer is subtracted from the test deadline so cleanup
	// can run before the test harness kills the process.
	DefaultTestBuffer = 5 * time.Second
)

// Context creates a context that respects the test's deadline, minus a
// buffer for cleanup. Tests without a deadline get the fallback.
func Context(t *testing.T, fallback time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	if deadline, ok := t.Deadline(); ok {
		adjusted := deadline.Add(-DefaultTestBuffer)
		if time.Until(adjusted) > 0 {
			return context.WithDeadline(context.Background(), adjusted)
		}
	}
	return context.WithTimeout(context.Background(), fallback)
}

// Eventually polls cond until it returns true or the timeout elapses.
// It fails the test on timeout. Useful for asserting on state that the
// dispatch loop updates asynchronously.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
