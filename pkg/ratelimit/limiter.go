package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	StrategyTokenBucket   = "token_bucket"
	StrategySlidingWindow = "sliding_window"
)

// minPoll is the shortest pause between sliding window attempts
const minPoll = 10 * time.Millisecond

// Limiter paces outgoing requests
type Limiter interface {
	// Allow takes a slot if one is free right now
	Allow() bool
	// Wait blocks until a slot is taken or ctx ends
	Wait(ctx context.Context) error
	// Reset returns the limiter to its initial, fully available state
	Reset()
}

// New builds a limiter allowing requestsPerMinute requests per minute.
// A non-positive rate disables pacing and returns nil.
func New(strategy string, requestsPerMinute int) (Limiter, error) {
	if requestsPerMinute <= 0 {
		return nil, nil
	}
	switch strings.ToLower(strategy) {
	case "", StrategyTokenBucket:
		return NewTokenBucket(requestsPerMinute, time.Minute), nil
	case StrategySlidingWindow:
		return NewSlidingWindow(requestsPerMinute, time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", strategy)
	}
}

// TokenBucket lets capacity requests through per period, refilling one
// token every period/capacity. It is backed by golang.org/x/time/rate.
type TokenBucket struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	capacity int
	period   time.Duration
	now      func() time.Time
}

// NewTokenBucket creates a full bucket of capacity tokens per period
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	tb := &TokenBucket{capacity: capacity, period: period, now: time.Now}
	tb.limiter = tb.newLimiter()
	return tb
}

func (tb *TokenBucket) newLimiter() *rate.Limiter {
	if tb.capacity <= 0 {
		return rate.NewLimiter(0, 0)
	}
	return rate.NewLimiter(rate.Every(tb.period/time.Duration(tb.capacity)), tb.capacity)
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter
}

func (tb *TokenBucket) Allow() bool {
	return tb.current().AllowN(tb.now(), 1)
}

// Wait blocks for the next token. A wait that cannot finish before the
// context deadline fails at once with context.DeadlineExceeded.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	err := tb.current().Wait(ctx)
	if err != nil && ctx.Err() == nil {
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}
	return err
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = tb.newLimiter()
}

// SlidingWindow admits at most limit requests within any window-long span
type SlidingWindow struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests []time.Time // admission times, oldest first
	now      func() time.Time
}

// NewSlidingWindow creates a limiter of limit requests per window
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:    limit,
		window:   window,
		requests: make([]time.Time, 0, limit),
		now:      time.Now,
	}
}

func (sw *SlidingWindow) reserve(now time.Time) (bool, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := now.Add(-sw.window)
	expired := 0
	for expired < len(sw.requests) && sw.requests[expired].Before(cutoff) {
		expired++
	}
	sw.requests = append(sw.requests[:0], sw.requests[expired:]...)

	if len(sw.requests) < sw.limit {
		sw.requests = append(sw.requests, now)
		return true, 0
	}
	if len(sw.requests) == 0 {
		return false, sw.window
	}
	return false, sw.requests[0].Sub(cutoff)
}

func (sw *SlidingWindow) Allow() bool {
	ok, _ := sw.reserve(sw.now())
	return ok
}

// Wait polls until the oldest admission leaves the window or ctx ends
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		ok, retryIn := sw.reserve(sw.now())
		if ok {
			return nil
		}
		if retryIn < minPoll {
			retryIn = minPoll
		}

		t := time.NewTimer(retryIn)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}
