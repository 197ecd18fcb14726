package fetcher

import (
	"context"
	"errors"
	"strconv"
	"time"

	"somharvest/pkg/api"
	"somharvest/pkg/cookies"
	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
	"somharvest/pkg/metrics"
	"somharvest/pkg/ratelimit"
	"somharvest/pkg/retry"
)

// Getter performs a single HTTP attempt. *api.Client implements it.
type Getter interface {
	Get(ctx context.Context, url string, jar *cookies.Jar) ([]byte, error)
}

// Options configures a Fetcher
type Options struct {
	// JobName labels logs and metrics
	JobName string
	// BaseURL is completed by appending the page number
	BaseURL string
	// RecordsFields lists the body fields holding records, first match wins
	RecordsFields []string
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	Backoff    retry.BackoffStrategy
	// MaxDelay caps every wait, Retry-After included. It is never allowed
	// above retry.DefaultMaxDelay.
	MaxDelay time.Duration
	// Sleep replaces the real wait between attempts (tests)
	Sleep   retry.SleepFunc
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// DefaultOptions returns the standard retry policy for a job.
func DefaultOptions(job, baseURL string, fields ...string) Options {
	return Options{
		JobName:       job,
		BaseURL:       baseURL,
		RecordsFields: fields,
		MaxRetries:    5,
		Backoff:       retry.DefaultExponentialBackoff(),
		MaxDelay:      retry.DefaultMaxDelay,
	}
}

// Fetcher retrieves pages, absorbing retryable failures until the retry
// budget runs out. Only *errors.Error values of type exhausted, or context
// errors, ever leave it.
type Fetcher struct {
	client Getter
	opts   Options
	logger logger.Logger
}

// New creates a new page fetcher
func New(client Getter, opts Options) *Fetcher {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}
	if opts.MaxDelay <= 0 || opts.MaxDelay > retry.DefaultMaxDelay {
		opts.MaxDelay = retry.DefaultMaxDelay
	}
	return &Fetcher{client: client, opts: opts, logger: log}
}

// PageURL returns the URL requested for page.
func (f *Fetcher) PageURL(page int) string {
	return f.opts.BaseURL + strconv.Itoa(page)
}

// FetchPage fetches and decodes one page, retrying transient failures.
func (f *Fetcher) FetchPage(ctx context.Context, page int, jar *cookies.Jar) (*api.PageResult, error) {
	url := f.PageURL(page)
	log := f.logger.WithField("page", page)

	result, err := retry.DoWithResult(func() (*api.PageResult, error) {
		body, err := f.attempt(ctx, url, jar)
		if err != nil {
			return nil, err
		}
		return api.DecodePage(body, f.opts.RecordsFields)
	}, f.retryConfig(ctx, log))

	if err != nil {
		return nil, f.exhausted(ctx, page, err)
	}
	return result, nil
}

// FetchDocument fetches a non-paginated document and hands the body to
// decode. A decode failure is retried like a network error. jar may be nil.
func (f *Fetcher) FetchDocument(ctx context.Context, url string, jar *cookies.Jar, decode func([]byte) error) error {
	log := f.logger.WithField("url", url)

	err := retry.Do(func() error {
		body, err := f.attempt(ctx, url, jar)
		if err != nil {
			return err
		}
		if err := decode(body); err != nil {
			var harvestErr *errs.Error
			if errors.As(err, &harvestErr) {
				return err
			}
			return errs.Network(err)
		}
		return nil
	}, f.retryConfig(ctx, log))

	if err != nil {
		return f.exhausted(ctx, 0, err)
	}
	return nil
}

func (f *Fetcher) attempt(ctx context.Context, url string, jar *cookies.Jar) ([]byte, error) {
	if f.opts.Limiter != nil {
		if err := f.opts.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	body, err := f.client.Get(ctx, url, jar)
	outcome := "ok"
	if err != nil {
		outcome = string(errs.TypeOf(err))
	}
	f.opts.Metrics.ObserveRequest(f.opts.JobName, outcome, time.Since(start))
	return body, err
}

func (f *Fetcher) retryConfig(ctx context.Context, log logger.Logger) *retry.Config {
	return &retry.Config{
		MaxRetries: f.opts.MaxRetries,
		Backoff:    f.opts.Backoff,
		MaxDelay:   f.opts.MaxDelay,
		RetryIf:    retry.DefaultRetryIf,
		Context:    ctx,
		Sleep:      f.opts.Sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			reason := err.Error()
			var harvestErr *errs.Error
			if errors.As(err, &harvestErr) {
				reason = harvestErr.Reason()
			}
			f.opts.Metrics.IncRetry(f.opts.JobName, string(errs.TypeOf(err)))
			log.WarnWithFields("request failed, backing off", map[string]interface{}{
				"attempt":     attempt,
				"max_retries": f.opts.MaxRetries,
				"wait_ms":     delay.Milliseconds(),
				"reason":      reason,
			})
		},
	}
}

// exhausted converts the terminal error of a retry loop into the one error
// shape the driver handles. Context errors pass through untouched.
func (f *Fetcher) exhausted(ctx context.Context, page int, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}
	return errs.FetchExhausted(page, err)
}
