// Package retry runs transient operations under exponential backoff.
// Structural failures are wrapped with Permanent so they surface on the
// first occurrence instead of burning the attempt budget.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Permanent marks err as not worth retrying. Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn up to maxAttempts times with exponential backoff between
// tries, stopping early on success, a Permanent error, or ctx cancellation.
func Do(ctx context.Context, maxAttempts int, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	return doWith(ctx, bo, maxAttempts, fn)
}

func doWith(ctx context.Context, bo backoff.BackOff, maxAttempts int, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	wrapped := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(maxAttempts-1))
	return backoff.Retry(fn, wrapped)
}
