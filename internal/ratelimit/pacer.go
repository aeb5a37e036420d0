// Package ratelimit paces calls to the lookup API.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks until the next request may be sent.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer allows one request per interval. The first request is
// never delayed.
type IntervalPacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewInterval returns a pacer that spaces requests at least interval apart.
// A non-positive interval disables pacing.
func NewInterval(interval time.Duration) *IntervalPacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalPacer{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Wait blocks until a request is allowed or ctx is done.
func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the configured minimum spacing.
func (p *IntervalPacer) Interval() time.Duration {
	return p.interval
}

type noWait struct{}

func (noWait) Wait(ctx context.Context) error {
	return ctx.Err()
}

// NoWait never blocks. It still honours cancellation.
var NoWait Pacer = noWait{}
