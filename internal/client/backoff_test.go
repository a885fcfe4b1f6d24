package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSequence(t *testing.T) {
	t.Parallel()

	b := newBackoff(100*time.Millisecond, 2*time.Second)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.next(), "attempt %d", i)
	}
}

func TestBackoffReset(t *testing.T) {
	t.Parallel()

	b := newBackoff(100*time.Millisecond, time.Second)
	b.next()
	b.next()
	b.next()

	b.reset()
	assert.Equal(t, 100*time.Millisecond, b.next())
}

func TestBackoffSaturatesAtCap(t *testing.T) {
	t.Parallel()

	b := newBackoff(time.Second, 10*time.Second)
	for i := 0; i < 100; i++ {
		d := b.next()
		assert.LessOrEqual(t, d, 10*time.Second)
		assert.Positive(t, d)
	}
	assert.Equal(t, 10*time.Second, b.next())
}

func TestBackoffDefaults(t *testing.T) {
	t.Parallel()

	b := newBackoff(0, 0)
	assert.Equal(t, DefaultBackoffBase, b.base)
	assert.Equal(t, DefaultBackoffCap, b.cap)
}
