package ingestion_engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// recordingSleep captures waits instead of sleeping.
type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(rec *recordingSleep) RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Sleep: rec.sleep}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(1, 0))
	assert.Equal(t, 2*time.Second, p.Backoff(2, 0))
	assert.Equal(t, 4*time.Second, p.Backoff(3, 0))
	assert.Equal(t, 5*time.Second, p.Backoff(4, 0), "computed delay is capped")
	assert.Equal(t, 30*time.Second, p.Backoff(1, 30*time.Second), "server hint wins and is not capped")
}

func TestRetryPolicy_SucceedsFirstTry(t *testing.T) {
	rec := &recordingSleep{}
	attempts, err := testPolicy(rec).Do(context.Background(), func(context.Context) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.waits)
}

func TestRetryPolicy_ThreeRateLimitsThenSuccess(t *testing.T) {
	rec := &recordingSleep{}
	calls := 0
	attempts, err := testPolicy(rec).Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 3 {
			return &core.RateLimitError{Err: errors.New("429")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	require.Len(t, rec.waits, 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, rec.waits)
}

func TestRetryPolicy_FourRateLimitsExhausts(t *testing.T) {
	rec := &recordingSleep{}
	attempts, err := testPolicy(rec).Do(context.Background(), func(context.Context) error {
		return &core.RateLimitError{Err: errors.New("429")}
	})

	require.Error(t, err)
	var rl *core.RateLimitError
	assert.ErrorAs(t, err, &rl)
	assert.Equal(t, 4, attempts)
	assert.Len(t, rec.waits, 3)
}

func TestRetryPolicy_OtherErrorsDoNotRetry(t *testing.T) {
	rec := &recordingSleep{}
	boom := errors.New("bad request")
	attempts, err := testPolicy(rec).Do(context.Background(), func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.waits)
}

func TestRetryPolicy_WaitsNeverShrink(t *testing.T) {
	rec := &recordingSleep{}
	hints := []time.Duration{500 * time.Millisecond, 0, 0}
	calls := 0
	_, err := testPolicy(rec).Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= len(hints) {
			return &core.RateLimitError{RetryAfter: hints[calls-1], Err: errors.New("429")}
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, rec.waits, 3)
	for i := 1; i < len(rec.waits); i++ {
		assert.GreaterOrEqual(t, rec.waits[i], rec.waits[i-1])
	}
	assert.Equal(t, 500*time.Millisecond, rec.waits[0])
}

func TestRetryPolicy_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(ctx, func(context.Context) error {
			return &core.RateLimitError{Err: errors.New("429")}
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestRetryPolicy_OnRetryReportsEachWait(t *testing.T) {
	rec := &recordingSleep{}
	p := testPolicy(rec)

	var seen []int
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		seen = append(seen, attempt)
		var rl *core.RateLimitError
		assert.ErrorAs(t, err, &rl)
	}

	calls := 0
	_, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return &core.RateLimitError{Err: errors.New("429")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}
