package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// BackoffStrategy decides how long to wait before a retry
type BackoffStrategy interface {
	// NextDelay returns the delay before the given retry (1-based)
	NextDelay(retry int) time.Duration
}

// BackoffFunc adapts a plain function to BackoffStrategy
type BackoffFunc func(retry int) time.Duration

// NextDelay calls f; retries below 1 never wait.
func (f BackoffFunc) NextDelay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	return f(retry)
}

// ExponentialBackoff grows the wait by Multiplier on every retry, starting
// from BaseDelay and never exceeding MaxDelay.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads each wait by up to ±JitterFactor of itself. Zero
	// keeps delays exact, which is what the harvest policy uses.
	JitterFactor float64
}

// DefaultExponentialBackoff waits 2s, 4s, 8s, 16s, 32s and then 60s.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  2 * time.Second,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: 2,
	}
}

func (eb *ExponentialBackoff) NextDelay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay)
	for i := 1; i < retry; i++ {
		delay *= eb.Multiplier
		if eb.capped(delay) {
			break
		}
	}
	if eb.JitterFactor > 0 {
		delay += delay * eb.JitterFactor * (2*rand.Float64() - 1)
	}

	switch {
	case delay < 0:
		return 0
	case eb.capped(delay):
		return eb.MaxDelay
	}
	return time.Duration(delay)
}

func (eb *ExponentialBackoff) capped(delay float64) bool {
	return eb.MaxDelay > 0 && delay >= float64(eb.MaxDelay)
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(retry int) time.Duration {
	return BackoffFunc(func(int) time.Duration { return cb.Delay }).NextDelay(retry)
}

// Wait sleeps for delay unless ctx ends first. It is the default SleepFunc.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
