package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
)

// recordingSleep captures requested waits instead of sleeping.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *recordingSleep) total() time.Duration {
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func testConfig(rec *recordingSleep) *Config {
	return &Config{
		MaxRetries: 5,
		Backoff:    DefaultExponentialBackoff(),
		MaxDelay:   DefaultMaxDelay,
		RetryIf:    DefaultRetryIf,
		Context:    context.Background(),
		Logger:     logger.NewNopLogger(),
		Sleep:      rec.sleep,
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{12, 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.retry), "retry %d", tt.retry)
	}
}

func TestExponentialBackoffJitterStaysCapped(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(8)
		assert.LessOrEqual(t, d, 10*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestBackoffFunc(t *testing.T) {
	linear := BackoffFunc(func(retry int) time.Duration {
		return time.Duration(retry) * time.Second
	})
	assert.Equal(t, time.Duration(0), linear.NextDelay(0))
	assert.Equal(t, 3*time.Second, linear.NextDelay(3))

	assert.Equal(t, time.Duration(0), (&ConstantBackoff{Delay: time.Minute}).NextDelay(0))
	assert.Equal(t, time.Minute, (&ConstantBackoff{Delay: time.Minute}).NextDelay(4))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	rec := &recordingSleep{}
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.HTTPStatus(502)
		}
		return nil
	}, testConfig(rec))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestDoExhaustsAfterSixAttempts(t *testing.T) {
	rec := &recordingSleep{}
	attempts := 0
	last := errs.HTTPStatus(500)

	err := Do(func() error {
		attempts++
		return last
	}, testConfig(rec))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 6, attempts)
	assert.Len(t, rec.delays, 5)
	for _, d := range rec.delays {
		assert.LessOrEqual(t, d, 60*time.Second)
	}
	assert.LessOrEqual(t, rec.total(), 300*time.Second)
}

func TestDoHonorsRetryAfter(t *testing.T) {
	rec := &recordingSleep{}
	attempts := 0

	err := Do(func() error {
		attempts++
		switch attempts {
		case 1:
			return errs.RateLimited(7 * time.Second)
		case 2:
			return errs.RateLimited(10 * time.Minute)
		case 3:
			return errs.RateLimited(0)
		}
		return nil
	}, testConfig(rec))

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		7 * time.Second,  // server asked
		60 * time.Second, // server asked too much, capped
		8 * time.Second,  // no header, third retry backoff
	}, rec.delays)
}

func TestDoDoesNotRetryContextErrors(t *testing.T) {
	rec := &recordingSleep{}
	attempts := 0

	err := Do(func() error {
		attempts++
		return context.Canceled
	}, testConfig(rec))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.delays)
}

func TestDoDoesNotRetryNonRetryable(t *testing.T) {
	rec := &recordingSleep{}
	corrupt := errs.CheckpointCorrupt("x.json", errors.New("bad"))
	attempts := 0

	err := Do(func() error {
		attempts++
		return corrupt
	}, testConfig(rec))

	assert.Equal(t, corrupt, err)
	assert.Equal(t, 1, attempts)
}

func TestDoStopsWhenContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := &Config{
		MaxRetries: 5,
		Backoff:    &ConstantBackoff{Delay: time.Hour},
		Context:    ctx,
		Logger:     logger.NewNopLogger(),
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(func() error {
		attempts++
		return errors.New("boom")
	}, cfg)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDoZeroRetries(t *testing.T) {
	rec := &recordingSleep{}
	cfg := testConfig(rec)
	cfg.MaxRetries = 0
	attempts := 0

	err := Do(func() error {
		attempts++
		return errs.HTTPStatus(503)
	}, cfg)

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.delays)
}

func TestDoWithResult(t *testing.T) {
	rec := &recordingSleep{}
	attempts := 0

	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.Network(errors.New("reset"))
		}
		return "success", nil
	}, testConfig(rec))

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestOnRetryCallback(t *testing.T) {
	rec := &recordingSleep{}
	cfg := testConfig(rec)
	var retries []int
	cfg.OnRetry = func(retry int, err error, delay time.Duration) {
		retries = append(retries, retry)
	}

	_ = Do(func() error { return errs.HTTPStatus(500) }, cfg)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, retries)
}
