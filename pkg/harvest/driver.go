package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"somharvest/pkg/api"
	"somharvest/pkg/checkpoint"
	"somharvest/pkg/cookies"
	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
	"somharvest/pkg/metrics"
	"somharvest/pkg/storage"
)

// PageFetcher retrieves one page, retrying internally
type PageFetcher interface {
	FetchPage(ctx context.Context, page int, jar *cookies.Jar) (*api.PageResult, error)
}

// CheckpointStore persists resumable state. *checkpoint.Manager implements it.
type CheckpointStore interface {
	Load() (*checkpoint.Checkpoint, error)
	Save(cp *checkpoint.Checkpoint) error
	Delete() error
	Quarantine() (string, error)
}

// OutputWriter writes final snapshots. *storage.Manager implements it.
type OutputWriter interface {
	SaveJSON(name string, v interface{}) (string, error)
}

// DriverOptions wires a Driver
type DriverOptions struct {
	Job         Job
	Fetcher     PageFetcher
	Checkpoints CheckpointStore
	Output      OutputWriter
	// Seed is a "k=v; k2=v2" cookie header used only when no checkpoint exists
	Seed    string
	Metrics *metrics.Metrics
	Logger  logger.Logger
	// Now defaults to time.Now
	Now func() time.Time
	// OnState observes every state transition
	OnState func(State)
}

// Driver runs the resumable pagination loop for one job. A Driver owns its
// cookie jar and is used for a single Run.
type Driver struct {
	opts   DriverOptions
	logger logger.Logger
	state  State

	jar        *cookies.Jar
	seen       *IdentitySet
	records    []json.RawMessage
	page       int
	totalPages *int
	totalCount *int
}

// NewDriver creates a driver for a paginated job
func NewDriver(opts DriverOptions) *Driver {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Driver{
		opts:   opts,
		logger: log.WithField("job", opts.Job.Name),
		state:  StateInit,
		jar:    cookies.NewJar(),
		seen:   NewIdentitySet(),
		page:   1,
	}
}

// Name returns the job name
func (d *Driver) Name() string {
	return d.opts.Job.Name
}

// State returns the current state
func (d *Driver) State() State {
	return d.state
}

// Jar exposes the job's cookie jar
func (d *Driver) Jar() *cookies.Jar {
	return d.jar
}

// Run harvests every page. On success the snapshot is written and the
// checkpoint removed. On failure the last checkpoint is left as it was and
// the returned Result is in StateStoppedOnError.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := d.opts.Now()
	result := &Result{Job: d.opts.Job.Name}
	finish := func(state State, err error) (*Result, error) {
		d.setState(state)
		result.State = state
		result.Total = len(d.records)
		result.ExpectedTotal = d.totalCount
		result.Elapsed = d.opts.Now().Sub(start)
		status := "ok"
		if err != nil {
			status = "failed"
		}
		d.opts.Metrics.IncJob(d.opts.Job.Name, status)
		return result, err
	}

	d.setState(StateLoadingCheckpoint)
	resumed, err := d.restore()
	if err != nil {
		d.logger.WithError(err).Error("Could not read checkpoint")
		return finish(StateStoppedOnError, fmt.Errorf("%s: %w", d.opts.Job.Name, err))
	}
	result.Resumed = resumed
	result.StartPage = d.page

	for {
		if err := ctx.Err(); err != nil {
			d.logStopped(err)
			return finish(StateStoppedOnError, err)
		}

		d.setState(StateFetching)
		d.logger.DebugWithFields("Fetching page", map[string]interface{}{
			"page": d.page,
		})
		page, err := d.opts.Fetcher.FetchPage(ctx, d.page, d.jar)
		if err != nil {
			d.logStopped(err)
			return finish(StateStoppedOnError, fmt.Errorf("%s: %w", d.opts.Job.Name, err))
		}

		d.setState(StateMerging)
		d.captureTotals(page.Pagination)

		if len(page.Items) == 0 {
			d.logger.InfoWithFields("No records in response, stopping", map[string]interface{}{
				"page": d.page,
			})
			break
		}

		added := d.merge(page.Items)
		result.Pages++
		result.Added += added

		d.setState(StateCheckpointing)
		if err := d.save(); err != nil {
			d.logger.WithError(err).ErrorWithFields("Checkpoint write failed, stopping", map[string]interface{}{
				"page": d.page,
			})
			return finish(StateStoppedOnError, fmt.Errorf("%s: checkpoint after page %d: %w", d.opts.Job.Name, d.page, err))
		}
		d.opts.Metrics.IncCheckpoint(d.opts.Job.Name)
		d.opts.Metrics.ObservePage(d.opts.Job.Name, added, len(page.Items)-added)

		logger.LogPageProgress(d.logger, d.page, len(page.Items), added, len(d.records), d.totalCount)

		if d.totalPages != nil && d.page >= *d.totalPages {
			d.logger.InfoWithFields("Reached last page", map[string]interface{}{
				"page": d.page,
			})
			break
		}
		d.page++
	}

	d.setState(StateDone)
	path, err := d.opts.Output.SaveJSON(d.opts.Job.OutputFile, &storage.Snapshot{
		ScrapedAt:     d.opts.Now(),
		Total:         len(d.records),
		ExpectedTotal: d.totalCount,
		RecordsField:  d.opts.Job.RecordsField,
		Records:       d.records,
		Cookies:       d.jar.Snapshot(),
	})
	if err != nil {
		d.logger.WithError(err).Error("Could not write output, checkpoint kept")
		return finish(StateStoppedOnError, fmt.Errorf("%s: write output: %w", d.opts.Job.Name, err))
	}
	result.OutputPath = path

	if err := d.opts.Checkpoints.Delete(); err != nil {
		d.logger.WithError(err).Error("Output written but checkpoint could not be removed")
		return finish(StateStoppedOnError, fmt.Errorf("%s: %w", d.opts.Job.Name, err))
	}

	res, _ := finish(StateDone, nil)
	d.logger.InfoWithFields("Harvest complete", map[string]interface{}{
		"total":   res.Total,
		"output":  path,
		"elapsed": res.Elapsed.Round(time.Millisecond).String(),
	})
	return res, nil
}

// restore loads the checkpoint into the driver, or seeds a fresh run.
func (d *Driver) restore() (bool, error) {
	cp, err := d.opts.Checkpoints.Load()
	if err != nil {
		if !errs.Is(err, errs.ErrorTypeCheckpointCorrupt) {
			return false, err
		}
		d.logger.WithError(err).Warn("Could not parse checkpoint, starting fresh")
		if _, qErr := d.opts.Checkpoints.Quarantine(); qErr != nil {
			d.logger.WithError(qErr).Warn("Could not move corrupt checkpoint aside")
		}
		cp = nil
	}

	if cp == nil {
		if d.opts.Seed != "" {
			d.jar.Seed(d.opts.Seed)
			d.logger.InfoWithFields("Loaded initial cookies", map[string]interface{}{
				"cookies": cookieNames(d.jar),
			})
		}
		return false, nil
	}

	d.page = cp.Page
	d.totalPages = cp.TotalPages
	d.totalCount = cp.TotalCount
	d.jar.Hydrate(cp.Cookies)
	for _, record := range cp.Records {
		if d.seen.Add(IdentityKey(record)) {
			d.records = append(d.records, record)
		}
	}

	d.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
		"page":    d.page,
		"records": len(d.records),
		"cookies": cookieNames(d.jar),
	})
	return true, nil
}

// captureTotals records pagination metadata the first time a page
// reports it. Later pages never revise it.
func (d *Driver) captureTotals(p *api.Pagination) {
	if d.totalPages != nil || p == nil || p.Pages == nil {
		return
	}
	d.totalPages = p.Pages
	d.totalCount = p.Count
	d.logger.InfoWithFields("Discovered totals", map[string]interface{}{
		"total_pages": *p.Pages,
		"total_count": intOrNil(p.Count),
	})
}

func (d *Driver) merge(items []json.RawMessage) int {
	added := 0
	for _, item := range items {
		if d.seen.Add(IdentityKey(item)) {
			d.records = append(d.records, item)
			added++
		}
	}
	return added
}

func (d *Driver) save() error {
	return d.opts.Checkpoints.Save(&checkpoint.Checkpoint{
		Page:         d.page + 1,
		RecordsField: d.opts.Job.RecordsField,
		Records:      d.records,
		TotalPages:   d.totalPages,
		TotalCount:   d.totalCount,
		Cookies:      d.jar.Snapshot(),
	})
}

func (d *Driver) logStopped(err error) {
	d.logger.WithError(err).ErrorWithFields("Job stopped, progress saved; re-run to resume", map[string]interface{}{
		"page":    d.page,
		"records": len(d.records),
	})
}

func (d *Driver) setState(s State) {
	d.state = s
	if d.opts.OnState != nil {
		d.opts.OnState(s)
	}
}

func cookieNames(jar *cookies.Jar) string {
	if jar.Len() == 0 {
		return "none"
	}
	return strings.Join(jar.Names(), ", ")
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
