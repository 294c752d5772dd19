package ingestion_engine

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// RetryPolicy bounds how often a throttled call is repeated.
//
// MaxRetries: retries after the first attempt (3 means at most 4 calls).
// BaseDelay:  first backoff when the server sent no hint; doubles on each retry.
// MaxDelay:   ceiling for computed backoff (0 = none). Server hints are not capped.
// Sleep:      waits between attempts; nil uses a context-aware timer.
// OnRetry:    called before each wait with the failed attempt number; nil is silent.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	OnRetry    func(attempt int, wait time.Duration, err error)
}

// DefaultRetryPolicy is three retries starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: time.Minute}
}

// Backoff returns the wait before retry number `retry` (1-based).
// A positive hint from the server wins over the computed value.
func (p RetryPolicy) Backoff(retry int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non rate-limit error, or the retries run out.
// Waits never shrink between retries. It returns the number of calls made and the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		attempts int
		prev     time.Duration
	)
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := op(ctx)
		if err == nil {
			return attempts, nil
		}

		var rl *core.RateLimitError
		if !errors.As(err, &rl) {
			return attempts, err
		}
		if attempts > p.MaxRetries {
			return attempts, err
		}

		wait := p.Backoff(attempts, rl.RetryAfter)
		if wait < prev {
			wait = prev
		}
		prev = wait

		if p.OnRetry != nil {
			p.OnRetry(attempts, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return attempts, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
