// Package rate paces browser actions with a jittered delay so the batch
// does not hammer the assessment site at machine speed.
package rate

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter sleeps a uniformly random duration between Min and Max.
type Limiter struct {
	Min time.Duration
	Max time.Duration
}

// New returns a Limiter with the standard 1.5–3s window.
func New() *Limiter {
	return &Limiter{Min: 1500 * time.Millisecond, Max: 3 * time.Second}
}

// Wait sleeps for the next jittered delay or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	t := time.NewTimer(l.delay())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Limiter) delay() time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	return l.Min + rand.N(l.Max-l.Min)
}
