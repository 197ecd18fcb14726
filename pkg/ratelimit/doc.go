// Package ratelimit paces requests sent to the upstream API.
//
// Pacing is optional and independent of retry backoff: a limiter only
// spreads attempts out, it never replaces the wait a 429 asks for.
//
//	limiter, err := ratelimit.New(ratelimit.StrategyTokenBucket, 60)
//	if err != nil {
//		return err
//	}
//	if limiter != nil {
//		if err := limiter.Wait(ctx); err != nil {
//			return err
//		}
//	}
//
// Two strategies are available:
//   - token_bucket: up to N requests, refilled every minute
//   - sliding_window: at most N requests in any trailing minute
package ratelimit
