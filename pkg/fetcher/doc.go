// Package fetcher implements the retrying page fetcher.
//
// Each page is requested up to MaxRetries+1 times. Rate limits (429), other
// non-2xx responses, transport failures and undecodable bodies are all
// retried with capped exponential backoff; a 429 carrying Retry-After waits
// for the server-requested time instead (still capped). When the budget is
// spent the caller receives a single *errors.Error of type exhausted whose
// message names the last failure: "rate limit", "HTTP 503" or
// "network error: ...".
package fetcher
