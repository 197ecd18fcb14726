package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"somharvest/pkg/cookies"
	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
)

const (
	// DefaultUserAgent identifies the harvester to the upstream API.
	DefaultUserAgent = "SoM-Analytics/1.0 (Pls dont ban)"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second
)

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Transport replaces the underlying round tripper (tests, proxies).
	Transport http.RoundTripper
	Logger    logger.Logger
}

// Client performs single GET attempts against the upstream JSON API.
// It never retries on its own; see package fetcher for the retry policy.
type Client struct {
	http   *resty.Client
	logger logger.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := resty.New()
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	// Session state lives in the job's cookies.Jar, not in resty.
	client.SetCookieJar(nil)
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	// Accept-Encoding is left to net/http so gzip bodies are decoded for us.
	client.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.5",
		"Pragma":          "no-cache",
		"Cache-Control":   "no-cache",
	})

	return &Client{http: client, logger: log}
}

// Get issues one GET request. Set-Cookie headers are absorbed into jar on
// every response, successful or not. jar may be nil for cookie-less calls.
//
// Failures are classified as *errs.Error: 429 -> rate_limit (with the
// server's Retry-After), other non-2xx -> http, no response -> network.
func (c *Client) Get(ctx context.Context, url string, jar *cookies.Jar) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if jar != nil {
		if header := jar.Header(); header != "" {
			req.SetHeader("Cookie", header)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"url": url,
	})

	resp, err := req.Get(url)
	duration := time.Since(start)

	if jar != nil && resp != nil && resp.RawResponse != nil {
		jar.Absorb(resp.Header().Values("Set-Cookie"))
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Network(err)
	}

	logger.LogRequest(c.logger, http.MethodGet, url, resp.StatusCode(), duration)

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests:
		return nil, errs.RateLimited(ParseRetryAfter(resp.Header().Get("Retry-After")))
	case status < 200 || status > 299:
		return nil, errs.HTTPStatus(status)
	}

	return resp.Body(), nil
}

// GetPage fetches url and decodes it as a paginated page.
func (c *Client) GetPage(ctx context.Context, url string, jar *cookies.Jar, fields []string) (*PageResult, error) {
	body, err := c.Get(ctx, url, jar)
	if err != nil {
		return nil, err
	}
	return DecodePage(body, fields)
}

// ParseRetryAfter reads a Retry-After header given in whole seconds.
// HTTP-date values are accepted too. Anything else yields zero, meaning
// "no server preference".
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
