package provider

import (
	"context"
	"time"

	"callsync/internal/clock"
	"callsync/internal/errs"
)

// DefaultBackoffBase is the first retry delay; each later delay doubles.
const DefaultBackoffBase = 500 * time.Millisecond

// RetryPolicy 有界重试：仅对可重试分类退避重试，额度耗尽立即放弃
// RetryPolicy retries only retryable kinds with doubling backoff; quota exhaustion aborts at once
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	// OnRetry runs before each retry with the attempt about to start and the last error.
	OnRetry func(attempt int, err error)
	// Clock times the backoff; nil means the wall clock.
	Clock clock.Clock
}

// Delay returns the wait before the given attempt (2, 3, ...).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if attempt <= 1 {
		return 0
	}
	return base * time.Duration(1<<(attempt-2))
}

// Do runs fn until it succeeds, fails with a non-retryable error, or attempts run out.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			if err := p.wait(ctx, p.Delay(attempt)); err != nil {
				return err
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.Retryable(err) {
			return err
		}
	}
	return lastErr
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	wake := make(chan struct{})
	timer := clock.OrReal(p.Clock).AfterFunc(d, func() { close(wake) })
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-wake:
		return nil
	}
}
