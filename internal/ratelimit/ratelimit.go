// Package ratelimit throttles inbound websocket frames per connection.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Limiter is a token bucket owned by one connection's reader goroutine.
// A nil *Limiter allows everything.
type Limiter struct {
	bucket  *rate.Limiter
	dropped uint64
}

func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow takes one token, counting the frame as dropped if none is left.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	if l.bucket.Allow() {
		return true
	}
	l.dropped++
	return false
}

// Dropped is the number of frames rejected so far.
func (l *Limiter) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped
}
