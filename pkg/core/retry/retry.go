// Package retry provides the shared retry policy applied to every external
// call site: DART API requests, LLM calls and SQLite writes under contention.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy defines bounded exponential backoff with random jitter.
// Attempt n (1-based) sleeps BaseDelay * 2^(n-1) + rand(0, Jitter) before
// the next try.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

// Default matches the upstream API pacing: 3 attempts, 150ms base, 50ms jitter.
var Default = Policy{MaxAttempts: 3, BaseDelay: 150 * time.Millisecond, Jitter: 50 * time.Millisecond}

// DBBusy matches SQLite contention tuning: 4 attempts, 120ms base, 80ms jitter.
var DBBusy = Policy{MaxAttempts: 4, BaseDelay: 120 * time.Millisecond, Jitter: 80 * time.Millisecond}

// Do runs fn up to MaxAttempts times. retryable decides whether an error is
// worth another attempt; a nil retryable retries every error. The last error
// is returned once attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if err := sleepCtx(ctx, p.backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}

func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SmartDelay sleeps the base inter-call delay plus jitter. Used between
// consecutive upstream calls to respect rate limits.
func SmartDelay(base, jitter time.Duration) {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	time.Sleep(d)
}
