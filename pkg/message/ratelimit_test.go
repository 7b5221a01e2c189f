package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time by hand.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func withClock(r *RateLimiter, c *fakeClock) *RateLimiter {
	r.now = c.now
	return r
}

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	clock := newFakeClock()
	r := withClock(NewRateLimiter(3, time.Minute), clock)

	for i := 0; i < 3; i++ {
		assert.True(t, r.CheckNewMessage(), "message %d should be allowed", i)
		clock.advance(time.Second)
	}
	assert.False(t, r.CheckNewMessage(), "fourth message within the window should be limited")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	clock := newFakeClock()
	r := withClock(NewRateLimiter(2, time.Minute), clock)

	assert.True(t, r.CheckNewMessage())
	clock.advance(30 * time.Second)
	assert.True(t, r.CheckNewMessage())
	assert.False(t, r.CheckNewMessage())

	// The first message falls out of the window.
	clock.advance(31 * time.Second)
	assert.True(t, r.CheckNewMessage())
	assert.False(t, r.CheckNewMessage())
}

func TestRateLimiterRejectionsDoNotCount(t *testing.T) {
	clock := newFakeClock()
	r := withClock(NewRateLimiter(1, time.Minute), clock)

	assert.True(t, r.CheckNewMessage())
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		assert.False(t, r.CheckNewMessage())
	}
	// 61s after the single allowed message it is out of the window,
	// regardless of how many rejected attempts happened since.
	clock.advance(51 * time.Second)
	assert.True(t, r.CheckNewMessage())
}

// In any window of length W, at most N messages get through.
func TestRateLimiterWindowProperty(t *testing.T) {
	const n = 5
	window := time.Minute
	clock := newFakeClock()
	r := withClock(NewRateLimiter(n, window), clock)

	var allowed []time.Time
	for i := 0; i < 500; i++ {
		if r.CheckNewMessage() {
			allowed = append(allowed, clock.t)
		}
		clock.advance(time.Duration(i%7) * time.Second)
	}

	for i := range allowed {
		count := 1
		for j := i + 1; j < len(allowed); j++ {
			if allowed[j].Sub(allowed[i]) < window {
				count++
			}
		}
		assert.LessOrEqual(t, count, n, "window starting at %v", allowed[i])
	}
	assert.LessOrEqual(t, cap(r.buf), n*2, "buffer should stay bounded")
}
