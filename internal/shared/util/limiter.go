package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by the reasoning backend and the tool
// server. The nil *Limiter is valid and never throttles.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter allows perSecond events on average with bursts of up to burst.
// perSecond <= 0 returns nil, i.e. no limit.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))}
}

// Allow takes n tokens if they are available right now.
func (l *Limiter) Allow(n int) bool {
	return l == nil || l.bucket.AllowN(time.Now(), n)
}

// Wait blocks until n tokens are available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return ctx.Err()
	}
	return l.bucket.WaitN(ctx, n)
}
