// Package poll runs fixed-interval "poll until true" loops.
package poll

import (
	"context"
	"time"
)

// CheckFunc reports whether the awaited condition holds. A non-nil error
// stops polling and is returned to the caller unchanged.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Until calls check immediately and then once per interval until it reports
// done, returns an error, or ctx ends. There is no backoff and no cap on the
// number of attempts; bound the wait with a context deadline if needed.
func Until(ctx context.Context, interval time.Duration, check CheckFunc) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
