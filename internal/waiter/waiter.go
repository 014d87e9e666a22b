// Package waiter provides the blocking poll-until-ready primitive used for
// eventually consistent provider state.
package waiter

import (
	"context"
	"time"
)

// Predicate is a describe-and-classify call against a resource manager. It
// reports whether the awaited condition holds and the status it observed.
// A non-nil error aborts the wait immediately.
type Predicate func(ctx context.Context) (done bool, status string, err error)

// Until polls the predicate on a fixed interval until it reports done or the
// timeout elapses. The returned status is the last one observed, for
// diagnostics on failure. No error escapes; a predicate error counts as an
// unsuccessful wait.
func Until(ctx context.Context, poll Predicate, interval, timeout time.Duration) (bool, string) {
	deadline := time.Now().Add(timeout)
	lastStatus := ""

	for {
		done, status, err := poll(ctx)
		if status != "" {
			lastStatus = status
		}
		if err != nil {
			return false, lastStatus
		}
		if done {
			return true, lastStatus
		}

		if time.Now().Add(interval).After(deadline) {
			return false, lastStatus
		}
		if !Sleep(ctx, interval) {
			return false, lastStatus
		}
	}
}

// Sleep blocks for the given duration, returning false if the context is
// canceled first. Used for the blind propagation delays where the provider
// offers no status to poll.
func Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
