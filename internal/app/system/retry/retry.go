// internal/app/system/retry/retry.go
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Default policy values.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 200 * time.Millisecond
)

// Policy bounds retries of an idempotent call. Attempt n (n >= 1) waits
// BaseDelay * 2^(n-1) before running.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries nothing.
	Retryable func(error) bool

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(op string, attempt int, err error)

	// After lets tests replace the backoff timer.
	After func(time.Duration) <-chan time.Time
}

// Default returns a policy with the default attempts and delay that
// retries errors accepted by retryable.
func Default(retryable func(error) bool) Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay, Retryable: retryable}
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Backoff returns the wait before the given retry (1-based).
func (p Policy) Backoff(retry int) time.Duration {
	if retry < 1 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay << (retry - 1)
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	after := p.After
	if after == nil {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(d):
		return nil
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The last error is returned unchanged. Context
// cancellation stops the loop between attempts.
func Do[T any](ctx context.Context, p Policy, log *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	n := p.attempts()
	for attempt := 0; attempt < n; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(op, attempt, lastErr)
			}
			if err := p.wait(ctx, p.Backoff(attempt)); err != nil {
				return zero, lastErr
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if log != nil && attempt+1 < n {
			log.Warn("transient failure, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}
	return zero, lastErr
}
