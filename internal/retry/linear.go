// Package retry runs operations under a linear backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded linear retry: the n-th retry waits n*Step.
type Policy struct {
	Attempts int
	Step     time.Duration
}

// DefaultPolicy is three attempts spaced 2s, then 4s.
var DefaultPolicy = Policy{Attempts: 3, Step: 2 * time.Second}

// Linear is a backoff.BackOff whose delay grows by Step on every call.
type Linear struct {
	Step    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.Step
}

// Reset implements backoff.BackOff.
func (l *Linear) Reset() { l.attempt = 0 }

// Do runs op until it succeeds, retryable reports false, the attempts are exhausted or ctx ends.
// onRetry, when set, observes every failed attempt that will be retried.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(context.Context) error, onRetry func(error, time.Duration)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(&Linear{Step: p.Step}, uint64(attempts-1)), ctx)

	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(operation, policy, onRetry)
}
