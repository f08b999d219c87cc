package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how an operation is retried: total attempts are
// MaxRetries+1, delays grow from BaseDelay by Multiplier up to MaxDelay,
// and Classify decides whether a failure is worth another attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64

	// Classify reports whether err is transient. A nil Classify treats
	// every error as transient.
	Classify func(err error) bool

	// Logger receives a debug record per failed attempt. Optional.
	Logger *slog.Logger
}

// Operation produces a value or fails. Retried operations must be safe
// to invoke more than once.
type Operation[T any] func() (T, error)

// Do runs op under the policy. Errors the policy classifies as permanent
// stop the loop immediately and are returned unchanged; transient errors
// are retried until the attempt budget runs out, at which point the last
// error is returned. The context cancels waits between attempts.
func Do[T any](ctx context.Context, policy Policy, op Operation[T]) (T, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = policy.BaseDelay
	expBackoff.Multiplier = policy.Multiplier
	expBackoff.RandomizationFactor = policy.Jitter
	expBackoff.MaxInterval = policy.MaxDelay

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		value, err := op()
		if err == nil {
			return value, nil
		}

		if policy.retryable(err) {
			if policy.Logger != nil {
				policy.Logger.Debug("attempt failed",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()),
				)
			}
			return value, err
		}

		return value, backoff.Permanent(err)
	}

	tries := policy.MaxRetries
	if tries < 0 {
		tries = 0
	}

	return backoff.Retry(
		ctx,
		wrapped,
		backoff.WithMaxTries(uint(tries)+1),
		backoff.WithBackOff(expBackoff),
	)
}

func (p Policy) retryable(err error) bool {
	if p.Classify == nil {
		return true
	}
	return p.Classify(err)
}
