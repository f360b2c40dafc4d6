// Package ratelimit provides process-local rate limiting for components
// that must not overrun an external budget: the outbound sender's
// per-minute send quota, and NotificationPlanner's full resync so it
// cannot starve the store of connections Dispatcher and ParserManager
// also need. There is no cluster-wide coordination here — this process
// is the only writer, so a token bucket local to it is sufficient.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with a constructor
// expressed in "events per minute," the unit every caller in this
// module thinks in.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a Limiter allowing perMinute events per minute, with a
// burst equal to perMinute (one minute's budget may be spent at once).
// perMinute <= 0 means unlimited.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, 0)}
	}
	evPerSec := rate.Limit(float64(perMinute) / 60.0)
	return &Limiter{rl: rate.NewLimiter(evPerSec, perMinute)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// Allow reports whether a token is available right now, consuming it if so.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}

// ReserveDelay reports how long the caller must wait before a token is
// available, without blocking, and reserves that token.
func (l *Limiter) ReserveDelay() time.Duration {
	r := l.rl.Reserve()
	if !r.OK() {
		return 0
	}
	d := r.Delay()
	if d <= 0 {
		return 0
	}
	return d
}
