// Package retry applies a uniform bounded-retry policy to store operations.
//
// The policy is an explicit value rather than per-call-site ad hoc loops so
// every caller absorbs transient contention the same way.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes a bounded exponential backoff with jitter.
type Policy struct {
	// MaxAttempts caps total tries, including the first.
	MaxAttempts uint
	// BaseDelay is the initial backoff interval.
	BaseDelay time.Duration
	// Multiplier grows the interval between attempts.
	Multiplier float64
	// Jitter is the randomization factor applied to each interval.
	Jitter float64
}

// DefaultPolicy is the store-call policy used on the join path.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Jitter:      0.5,
	}
}

// Do runs op under the policy, retrying transient failures.
// Errors wrapped with Permanent stop the retry loop immediately.
func Do[T any](ctx context.Context, policy Policy, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	if policy.BaseDelay > 0 {
		bo.InitialInterval = policy.BaseDelay
	}
	if policy.Multiplier > 0 {
		bo.Multiplier = policy.Multiplier
	}
	if policy.Jitter >= 0 {
		bo.RandomizationFactor = policy.Jitter
	}

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	return backoff.Retry(ctx, backoff.Operation[T](op),
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(attempts),
	)
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
