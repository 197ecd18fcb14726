// Package retry runs an operation until it succeeds, a non-retryable error
// occurs, or the retry budget is spent.
//
// The wait before retry n is the server's Retry-After when the failure
// carries one, otherwise the backoff delay; either way it is capped at
// Config.MaxDelay. With the defaults an operation runs at most six times
// and sleeps at most five times (2s, 4s, 8s, 16s, 32s).
//
// Basic usage:
//
//	cfg := retry.DefaultConfig()
//	cfg.Context = ctx
//	page, err := retry.DoWithResult(func() (*api.PageResult, error) {
//		return client.GetPage(ctx, url, jar, fields)
//	}, cfg)
//	if errors.Is(err, retry.ErrRetriesExhausted) {
//		// give up on this page
//	}
//
// Context cancellation is never retried and interrupts a pending wait.
package retry
