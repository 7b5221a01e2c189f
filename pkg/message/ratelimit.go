// Package message holds the per-user chat message policies: rate limiting
// and content validation.
package message

import "time"

// RateLimiter is a sliding-window counter: at most max messages within
// window. Memory use is bounded by max.
type RateLimiter struct {
	buf    []time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buf:    make([]time.Time, 0, max),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// CheckNewMessage reports whether a message sent now is within the limit
// and, if so, records it.
func (r *RateLimiter) CheckNewMessage() bool {
	now := r.now()
	cutoff := now.Add(-r.window)

	keep := r.buf[:0]
	for _, t := range r.buf {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	r.buf = keep

	if len(r.buf) >= r.max {
		return false
	}
	r.buf = append(r.buf, now)
	return true
}
