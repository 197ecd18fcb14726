package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be empty")

	// one token comes back every 40ms
	time.Sleep(60 * time.Millisecond)
	assert.True(t, tb.Allow())

	tb.Reset()
	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "token %d after reset", i+1)
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, 200*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}

	time.Sleep(250 * time.Millisecond)
	if !sw.Allow() {
		t.Error("Expected request to be allowed after window slides")
	}

	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSlidingWindowSlidesWithClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	sw := NewSlidingWindow(2, time.Minute)
	sw.now = clock.now

	require.True(t, sw.Allow())
	clock.advance(40 * time.Second)
	require.True(t, sw.Allow())
	assert.False(t, sw.Allow())

	ok, retryIn := sw.reserve(clock.now())
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, retryIn)

	// the first admission has left the window, the second has not
	clock.advance(21 * time.Second)
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
}

func TestTokenBucketRefillsSteadily(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(3, time.Minute)
	tb.now = clock.now

	for i := 0; i < 3; i++ {
		require.True(t, tb.Allow())
	}
	assert.False(t, tb.Allow())

	clock.advance(19 * time.Second)
	assert.False(t, tb.Allow())

	clock.advance(time.Second)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// never more than capacity, however long the pause
	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow())
	}
	assert.False(t, tb.Allow())
}

func TestWaitRespectsContext(t *testing.T) {
	limiters := map[string]Limiter{
		"token bucket":   NewTokenBucket(1, time.Hour),
		"sliding window": NewSlidingWindow(1, time.Hour),
	}

	for name, limiter := range limiters {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, limiter.Wait(context.Background()))

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := limiter.Wait(ctx)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestWaitUnblocksAfterRefill(t *testing.T) {
	tb := NewTokenBucket(1, 50*time.Millisecond)
	require.NoError(t, tb.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestNew(t *testing.T) {
	limiter, err := New("token_bucket", 0)
	require.NoError(t, err)
	assert.Nil(t, limiter)

	limiter, err = New("", 30)
	require.NoError(t, err)
	assert.IsType(t, &TokenBucket{}, limiter)

	limiter, err = New("sliding_window", 30)
	require.NoError(t, err)
	assert.IsType(t, &SlidingWindow{}, limiter)

	_, err = New("leaky", 30)
	assert.Error(t, err)
}
