package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"somharvest/pkg/harvest"
	"somharvest/pkg/logger"
)

// Outcome is the result of one task in a run. A task skipped because the
// run was interrupted carries the context error in Err; one skipped after an
// earlier failure has no error of its own.
type Outcome struct {
	Task     string
	Result   *harvest.Result
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Report summarises a whole run
type Report struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	Outcomes []Outcome
}

// Err joins the errors of every failed or interrupted task, nil when all
// succeeded
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Runner executes harvest tasks one after another, or up to Parallel at a
// time. After the first failure no further task is started; tasks already
// running are left to finish.
type Runner struct {
	parallel int
	runID    string
	logger   logger.Logger
	now      func() time.Time
}

// New creates a runner. parallel below 1 means sequential.
func New(parallel int, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	if parallel < 1 {
		parallel = 1
	}
	runID := uuid.NewString()
	return &Runner{
		parallel: parallel,
		runID:    runID,
		logger:   log.WithField("run_id", runID),
		now:      time.Now,
	}
}

// RunID identifies this run in logs
func (r *Runner) RunID() string {
	return r.runID
}

// Logger returns the run-scoped logger that tasks should log through
func (r *Runner) Logger() logger.Logger {
	return r.logger
}

// Run executes tasks in order and reports on each of them
func (r *Runner) Run(ctx context.Context, tasks []harvest.Task) *Report {
	report := &Report{
		RunID:    r.runID,
		Started:  r.now(),
		Outcomes: make([]Outcome, len(tasks)),
	}

	r.logger.InfoWithFields("Run started", map[string]interface{}{
		"jobs":     len(tasks),
		"parallel": r.parallel,
		"started":  report.Started.Format(time.RFC3339),
	})

	if r.parallel == 1 {
		r.runSequential(ctx, tasks, report.Outcomes)
	} else {
		r.runParallel(ctx, tasks, report.Outcomes)
	}

	report.Elapsed = r.now().Sub(report.Started)

	fields := map[string]interface{}{
		"elapsed_min": fmt.Sprintf("%.2f", report.Elapsed.Minutes()),
	}
	if err := report.Err(); err != nil {
		r.logger.WithError(err).ErrorWithFields("Run failed", fields)
	} else {
		r.logger.InfoWithFields("Run finished", fields)
	}
	return report
}

func (r *Runner) runSequential(ctx context.Context, tasks []harvest.Task, outcomes []Outcome) {
	failed := false
	for i, task := range tasks {
		if failed || ctx.Err() != nil {
			outcomes[i] = r.skip(ctx, task)
			continue
		}
		outcomes[i] = r.runTask(ctx, task)
		failed = outcomes[i].Err != nil
	}
}

func (r *Runner) runParallel(ctx context.Context, tasks []harvest.Task, outcomes []Outcome) {
	var (
		g      errgroup.Group
		failed atomic.Bool
		mu     sync.Mutex
	)
	// A task waits for a free slot before the skip decision. A failed task
	// sets failed before releasing its slot, so the next waiter sees it.
	slots := make(chan struct{}, r.parallel)

	for i, task := range tasks {
		slots <- struct{}{}
		if failed.Load() || ctx.Err() != nil {
			<-slots
			outcomes[i] = r.skip(ctx, task)
			continue
		}
		g.Go(func() error {
			defer func() { <-slots }()
			outcome := r.runTask(ctx, task)
			if outcome.Err != nil {
				failed.Store(true)
			}
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return outcome.Err
		})
	}
	_ = g.Wait()
}

func (r *Runner) runTask(ctx context.Context, task harvest.Task) Outcome {
	start := r.now()
	logger.LogJobStart(r.logger, task.Name(), nil)

	result, err := task.Run(ctx)
	outcome := Outcome{
		Task:     task.Name(),
		Result:   result,
		Err:      err,
		Duration: r.now().Sub(start),
	}

	logger.LogJobStop(r.logger, task.Name(), outcome.Duration, err)
	return outcome
}

func (r *Runner) skip(ctx context.Context, task harvest.Task) Outcome {
	outcome := Outcome{Task: task.Name(), Skipped: true}
	if err := ctx.Err(); err != nil {
		outcome.Err = fmt.Errorf("job %s not started: %w", task.Name(), err)
		r.logger.WithError(err).WarnWithFields("Job skipped, run interrupted", map[string]interface{}{
			"job": task.Name(),
		})
		return outcome
	}
	r.logger.WarnWithFields("Job skipped after an earlier failure", map[string]interface{}{
		"job": task.Name(),
	})
	return outcome
}
