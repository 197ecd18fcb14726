package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"somharvest/pkg/api"
	"somharvest/pkg/cookies"
	"somharvest/pkg/logger"
	"somharvest/pkg/metrics"
	"somharvest/pkg/storage"
)

// DocumentFetcher retrieves a whole document, retrying internally
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string, jar *cookies.Jar, decode func([]byte) error) error
}

// OneShotOptions wires a OneShot job
type OneShotOptions struct {
	Job     Job
	Fetcher DocumentFetcher
	Output  OutputWriter
	Metrics *metrics.Metrics
	Logger  logger.Logger
	Now     func() time.Time
}

// OneShot fetches a single non-paginated document, such as the shells
// leaderboard, and writes {scraped_at, total, entries}. It keeps no
// checkpoint and sends no cookies.
type OneShot struct {
	opts   OneShotOptions
	logger logger.Logger
}

// NewOneShot creates a one-shot job
func NewOneShot(opts OneShotOptions) *OneShot {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &OneShot{opts: opts, logger: log.WithField("job", opts.Job.Name)}
}

// Name returns the job name
func (o *OneShot) Name() string {
	return o.opts.Job.Name
}

// Run fetches the document and writes the snapshot
func (o *OneShot) Run(ctx context.Context) (*Result, error) {
	start := o.opts.Now()
	result := &Result{Job: o.opts.Job.Name, State: StateFetching}

	o.logger.InfoWithFields("Fetching document", map[string]interface{}{
		"url": o.opts.Job.BaseURL,
	})

	var entries []json.RawMessage
	err := o.opts.Fetcher.FetchDocument(ctx, o.opts.Job.BaseURL, nil, func(body []byte) error {
		var decodeErr error
		entries, decodeErr = api.DecodeEntries(body, o.opts.Job.Fields())
		return decodeErr
	})
	if err != nil {
		result.State = StateStoppedOnError
		result.Elapsed = o.opts.Now().Sub(start)
		o.opts.Metrics.IncJob(o.opts.Job.Name, "failed")
		o.logger.WithError(err).Error("Fetch failed")
		return result, fmt.Errorf("%s: %w", o.opts.Job.Name, err)
	}

	path, err := o.opts.Output.SaveJSON(o.opts.Job.OutputFile, &storage.EntriesSnapshot{
		ScrapedAt: o.opts.Now(),
		Entries:   entries,
	})
	if err != nil {
		result.State = StateStoppedOnError
		result.Elapsed = o.opts.Now().Sub(start)
		o.opts.Metrics.IncJob(o.opts.Job.Name, "failed")
		return result, fmt.Errorf("%s: write output: %w", o.opts.Job.Name, err)
	}

	result.State = StateDone
	result.Pages = 1
	result.Added = len(entries)
	result.Total = len(entries)
	result.OutputPath = path
	result.Elapsed = o.opts.Now().Sub(start)
	o.opts.Metrics.IncJob(o.opts.Job.Name, "ok")

	o.logger.InfoWithFields("Saved entries", map[string]interface{}{
		"total":  len(entries),
		"output": path,
	})
	return result, nil
}
