// Package resilience wraps calls to the engine and the coaching agent with
// bounded retry, backoff and failure classification.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrThrottled marks an upstream rate-limit response. Clients wrap their
// throttle errors with it so Do can tell them apart from hard failures.
var ErrThrottled = errors.New("resilience: upstream throttled")

// ErrRateLimited is surfaced after retries on transient failures are
// exhausted. The caller can translate it into a wait-and-retry hint.
var ErrRateLimited = errors.New("resilience: rate limited after retries")

// Kind splits failures into the two classes the retry loop cares about.
type Kind int

const (
	// KindTransient failures (timeouts, throttling, a dead engine
	// process) may succeed on a later attempt.
	KindTransient Kind = iota
	// KindPermanent failures (malformed input, auth rejection) will not.
	KindPermanent
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

// Policy bounds the retry loop. Classify decides whether an attempt's error
// is worth retrying; when nil, DefaultClassify is used.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Classify    func(error) Kind
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Classify:    DefaultClassify,
	}
}

// DefaultClassify treats deadline expiry and explicit throttle marks as
// transient and everything else as permanent. Callers with richer error
// taxonomies supply their own classifier.
func DefaultClassify(err error) Kind {
	switch {
	case errors.Is(err, ErrThrottled),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindPermanent
	}
}

// Do runs fn until it succeeds, fails permanently, or the attempt budget is
// spent. Transient exhaustion is wrapped in ErrRateLimited; permanent
// failures are returned as-is after the first attempt.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}
	classify := policy.Classify
	if classify == nil {
		classify = DefaultClassify
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if classify(err) == KindPermanent {
			return err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, policy.BaseDelay<<uint(attempt-1)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrRateLimited, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
