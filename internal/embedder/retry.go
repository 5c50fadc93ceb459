package embedder

import (
	"context"
	"log/slog"
	"time"
)

// Retry configuration defaults. Transient outages are waited out rather
// than surfaced: the delay grows by half the base per attempt up to a hard
// ceiling, and the loop runs until the server recovers or the caller
// cancels.
const (
	DefaultBaseDelay = 60 * time.Second
	DefaultMaxDelay  = 5 * time.Minute
	DefaultLogEvery  = 5

	// backoffGrowth is the per-retry growth factor applied to BaseDelay.
	backoffGrowth = 0.5
)

// RetryPolicy drives the unbounded retry loop around embedding API calls.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	LogEvery  int // Progress is logged every LogEvery retries

	// OnRetry, if set, is invoked before each retry sleep. Used by tests
	// and progress reporting.
	OnRetry func(retry int, err error)
}

// DefaultRetryPolicy returns the production retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
		LogEvery:  DefaultLogEvery,
	}
}

// delay computes the sleep before the given 1-based retry.
func (p RetryPolicy) delay(retry int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * (1 + backoffGrowth*float64(retry-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds or fails permanently. Transient errors are
// retried without an attempt limit; everything else returns immediately.
// The context is checked before every sleep so a caller-initiated abort
// unwinds promptly. Returns the number of retries performed.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func() error) (int, error) {
	retries := 0
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return retries, err
		}

		err := fn()
		if err == nil {
			return retries, nil
		}
		if !IsTransient(err) {
			return retries, err
		}

		retries++
		wait := p.delay(retries)

		if p.OnRetry != nil {
			p.OnRetry(retries, err)
		}
		if p.LogEvery > 0 && (retries-1)%p.LogEvery == 0 {
			slog.Warn("embedding API unavailable, waiting for recovery",
				"operation", operation,
				"retry", retries,
				"elapsed", time.Since(start).Round(time.Second),
				"next_delay", wait,
				"error", err,
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return retries, ctx.Err()
		case <-timer.C:
		}
	}
}
