package engine

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backoff computes the delay before each retry: Base * 2^(attempt-1),
// clamped to Max when Max is positive.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	shift := attempt - 1
	if shift > 62 {
		shift = 62
	}
	// Saturate instead of overflowing time.Duration.
	delay := time.Duration(math.MaxInt64)
	if base <= time.Duration(math.MaxInt64>>shift) {
		delay = base << shift
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// Retrier re-runs an operation until it succeeds or attempts run out.
type Retrier struct {
	MaxAttempts int
	Backoff     Backoff

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Retryable reports whether a failure is worth another attempt. Nil
	// treats every failure as retryable.
	Retryable func(err error) bool

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do calls op at most MaxAttempts times, sleeping between failures. Any
// success, including an empty result, returns immediately. It returns the
// number of attempts made and, on exhaustion, the last error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return attempt, lastErr
		}
		if attempt == attempts {
			break
		}

		delay := r.Backoff.Delay(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, fmt.Errorf("retry interrupted after %d attempt(s): %w", attempt, lastErr)
		}
	}
	return attempts, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
