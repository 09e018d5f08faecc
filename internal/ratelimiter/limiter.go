package ratelimiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// SendLimiter caps how many mails a dispatcher hands to the transport per
// second. It is independent of the cumulative pause rules.
// A nil or zero-rate limiter never blocks.
type SendLimiter struct {
	limiter *rate.Limiter
}

// New creates a SendLimiter allowing perSecond sends per second; 0 disables it.
// Burst equals the rate (at least 1) so nothing is saved up beyond one
// second's allowance.
func New(perSecond float64) *SendLimiter {
	if perSecond <= 0 {
		return &SendLimiter{}
	}
	burst := int(math.Ceil(perSecond))
	return &SendLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a send is allowed.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *SendLimiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Enabled reports whether the limiter throttles at all.
func (l *SendLimiter) Enabled() bool {
	return l != nil && l.limiter != nil
}
