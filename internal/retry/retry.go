// Package retry wraps fallible operations with bounded exponential backoff.
//
// A Classifier decides whether a failure is transient (worth retrying) or
// permanent (abort immediately without consuming remaining attempts). After
// the attempts are exhausted the last failure is surfaced wrapped in an
// *Error carrying the operation name and attempt count.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Classifier reports whether an error is transient and should be retried.
type Classifier func(error) bool

// Always treats every failure as transient.
func Always(error) bool { return true }

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // sleep before the second attempt
	Multiplier  float64       // backoff growth per attempt
	Jitter      float64       // randomization factor, 0 disables jitter
}

// DefaultPolicy mirrors the policy used throughout the system: three attempts
// with an exponential wait doubling from half a second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      0.25,
	}
}

// Error is the failure surfaced after retries are exhausted or a permanent
// failure aborts the operation.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes fn under the policy. Failures the classifier reports as
// transient are retried after an exponential delay; permanent failures abort
// immediately. A nil classifier retries everything.
func Run(ctx context.Context, op string, p Policy, transient Classifier, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if transient == nil {
		transient = Always
	}

	attempts := 0
	wrapped := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.BaseDelay
	expo.Multiplier = p.Multiplier
	expo.RandomizationFactor = p.Jitter
	expo.MaxElapsedTime = 0 // attempts are bounded by count, not wall clock

	var policy backoff.BackOff = backoff.WithMaxRetries(expo, uint64(p.MaxAttempts-1))
	policy = backoff.WithContext(policy, ctx)

	if err := backoff.Retry(wrapped, policy); err != nil {
		return &Error{Op: op, Attempts: attempts, Err: err}
	}
	return nil
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, op string, p Policy, transient Classifier, fn func() (T, error)) (T, error) {
	var result T
	err := Run(ctx, op, p, transient, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
