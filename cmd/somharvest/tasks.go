package main

import (
	"fmt"
	"net/http"

	"somharvest/pkg/api"
	"somharvest/pkg/checkpoint"
	"somharvest/pkg/config"
	"somharvest/pkg/fetcher"
	"somharvest/pkg/harvest"
	"somharvest/pkg/logger"
	"somharvest/pkg/metrics"
	"somharvest/pkg/ratelimit"
	"somharvest/pkg/retry"
	"somharvest/pkg/storage"
)

// taskDeps carries what every job of one run shares
type taskDeps struct {
	cfg     *config.Config
	seed    string
	fresh   bool
	output  *storage.Manager
	metrics *metrics.Metrics
	logger  logger.Logger
	// transport overrides the HTTP round tripper, nil in production
	transport http.RoundTripper
	// sleep overrides retry waits, nil in production
	sleep retry.SleepFunc
}

// harvestJob converts a configured job, resolving file names against the
// output directory.
func harvestJob(jc config.JobConfig, out *storage.Manager) harvest.Job {
	kind := harvest.Kind(jc.Kind)
	if kind == "" {
		kind = harvest.KindPaginated
	}
	job := harvest.Job{
		Name:           jc.Name,
		Kind:           kind,
		BaseURL:        jc.BaseURL,
		RecordsField:   jc.RecordsField,
		FallbackFields: jc.FallbackFields,
		UserAgent:      jc.UserAgent,
		OutputFile:     jc.OutputFile,
	}
	if jc.CheckpointFile != "" {
		job.CheckpointFile = out.Path(jc.CheckpointFile)
	}
	return job
}

func checkpointManager(job harvest.Job, log logger.Logger) *checkpoint.Manager {
	return checkpoint.NewManager(job.CheckpointFile, job.RecordsField, log)
}

// buildTasks wires one harvest task per job. All jobs share one limiter so
// the configured pace holds across parallel jobs.
func buildTasks(jobs []config.JobConfig, deps taskDeps) ([]harvest.Task, error) {
	cfg := deps.cfg
	limiter, err := ratelimit.New(cfg.RateLimit.Strategy, cfg.RateLimit.RequestsPerMinute)
	if err != nil {
		return nil, err
	}
	backoff := &retry.ExponentialBackoff{
		BaseDelay:  cfg.Retry.BaseWait,
		MaxDelay:   cfg.Retry.MaxWait,
		Multiplier: cfg.Retry.Multiplier,
	}

	tasks := make([]harvest.Task, 0, len(jobs))
	for _, jc := range jobs {
		job := harvestJob(jc, deps.output)
		if err := job.Validate(); err != nil {
			return nil, err
		}
		log := deps.logger.WithField("job", job.Name)

		userAgent := job.UserAgent
		if userAgent == "" {
			userAgent = cfg.HTTP.UserAgent
		}
		client := api.NewClient(api.Options{
			Timeout:   cfg.HTTP.Timeout,
			UserAgent: userAgent,
			Transport: deps.transport,
			Logger:    log,
		})

		opts := fetcher.DefaultOptions(job.Name, job.BaseURL, job.Fields()...)
		opts.MaxRetries = cfg.Retry.MaxRetries
		opts.Backoff = backoff
		opts.MaxDelay = cfg.Retry.MaxWait
		opts.Sleep = deps.sleep
		opts.Limiter = limiter
		opts.Metrics = deps.metrics
		opts.Logger = log
		f := fetcher.New(client, opts)

		switch job.Kind {
		case harvest.KindOneShot:
			tasks = append(tasks, harvest.NewOneShot(harvest.OneShotOptions{
				Job:     job,
				Fetcher: f,
				Output:  deps.output,
				Metrics: deps.metrics,
				Logger:  log,
			}))
		case harvest.KindPaginated:
			cps := checkpointManager(job, log)
			if deps.fresh {
				if err := cps.Delete(); err != nil {
					return nil, fmt.Errorf("job %s: %w", job.Name, err)
				}
				log.WarnWithFields("Starting fresh, checkpoint discarded", map[string]interface{}{
					"path": cps.Path(),
				})
			}
			tasks = append(tasks, harvest.NewDriver(harvest.DriverOptions{
				Job:         job,
				Fetcher:     f,
				Checkpoints: cps,
				Output:      deps.output,
				Seed:        deps.seed,
				Metrics:     deps.metrics,
				Logger:      log,
			}))
		default:
			return nil, fmt.Errorf("job %s: unknown kind %q", job.Name, job.Kind)
		}
	}
	return tasks, nil
}
