package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
)

// ErrRetriesExhausted is returned (wrapping the last failure) when every
// allowed attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// DefaultMaxDelay caps every wait, including one requested by Retry-After.
const DefaultMaxDelay = 60 * time.Second

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// SleepFunc pauses between attempts. Tests replace it to avoid real waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// MaxDelay caps each individual wait (DefaultMaxDelay when zero)
	MaxDelay time.Duration
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each wait
	OnRetry func(retry int, err error, delay time.Duration)
	// Context for cancellation
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
	// Sleep defaults to Wait
	Sleep SleepFunc
}

// DefaultConfig returns the harvest retry policy: 5 retries, 2s doubling
// backoff, 60s cap.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: 5,
		Backoff:    DefaultExponentialBackoff(),
		MaxDelay:   DefaultMaxDelay,
		RetryIf:    DefaultRetryIf,
		Context:    context.Background(),
		Logger:     logger.GetLogger(),
		Sleep:      Wait,
	}
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var harvestErr *errs.Error
	if errors.As(err, &harvestErr) {
		return errs.IsRetryable(harvestErr.Type)
	}

	// Unknown errors are treated as transient
	return true
}

// DelayFor picks the wait before the given retry: a server-requested
// Retry-After wins when present, otherwise the backoff applies. The result
// never exceeds maxDelay.
func DelayFor(err error, retry int, backoff BackoffStrategy, maxDelay time.Duration) time.Duration {
	delay := errs.RetryAfterOf(err)
	if delay <= 0 && backoff != nil {
		delay = backoff.NextDelay(retry)
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Do executes an operation with retry logic
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	retry := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			if retry > 0 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"retries": retry,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if retry >= cfg.MaxRetries {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("max retries exceeded", map[string]interface{}{
					"attempts":   retry + 1,
					"last_error": err.Error(),
				})
			}
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retry+1, err)
		}

		retry++
		delay := DelayFor(err, retry, cfg.Backoff, maxDelay)

		if cfg.OnRetry != nil {
			cfg.OnRetry(retry, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":     retry,
				"max_retries": cfg.MaxRetries,
				"reason":      err.Error(),
				"wait_ms":     delay.Milliseconds(),
			})
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}
