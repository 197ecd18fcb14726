package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for harvest jobs. All methods are
// safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec
	PagesTotal        *prometheus.CounterVec
	RecordsAddedTotal *prometheus.CounterVec
	DuplicatesTotal   *prometheus.CounterVec
	CheckpointWrites  *prometheus.CounterVec
	JobsTotal         *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_requests_total",
			Help: "HTTP attempts issued, by job and outcome.",
		},
		[]string{"job", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "somharvest_request_duration_seconds",
			Help:    "Latency of single HTTP attempts.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_retries_total",
			Help: "Retries scheduled, by job and failure type.",
		},
		[]string{"job", "reason"},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_pages_total",
			Help: "Pages merged.",
		},
		[]string{"job"},
	)
	added := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_records_added_total",
			Help: "Records appended after deduplication.",
		},
		[]string{"job"},
	)
	duplicates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_duplicates_total",
			Help: "Records dropped because their identity key was already seen.",
		},
		[]string{"job"},
	)
	checkpoints := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_checkpoint_writes_total",
			Help: "Checkpoint files written.",
		},
		[]string{"job"},
	)
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "somharvest_jobs_total",
			Help: "Finished jobs by status.",
		},
		[]string{"job", "status"},
	)

	registry.MustRegister(requests, requestDuration, retries, pages, added, duplicates, checkpoints, jobs)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		RetriesTotal:      retries,
		PagesTotal:        pages,
		RecordsAddedTotal: added,
		DuplicatesTotal:   duplicates,
		CheckpointWrites:  checkpoints,
		JobsTotal:         jobs,
	}
}

// ObserveRequest records one HTTP attempt.
func (m *Metrics) ObserveRequest(job, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(job, outcome).Inc()
	m.RequestDuration.WithLabelValues(job).Observe(d.Seconds())
}

// IncRetry increments the retries counter.
func (m *Metrics) IncRetry(job, reason string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(job, reason).Inc()
}

// ObservePage records a merged page.
func (m *Metrics) ObservePage(job string, added, duplicates int) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(job).Inc()
	m.RecordsAddedTotal.WithLabelValues(job).Add(float64(added))
	m.DuplicatesTotal.WithLabelValues(job).Add(float64(duplicates))
}

// IncCheckpoint increments the checkpoint writes counter.
func (m *Metrics) IncCheckpoint(job string) {
	if m == nil {
		return
	}
	m.CheckpointWrites.WithLabelValues(job).Inc()
}

// IncJob records a finished job.
func (m *Metrics) IncJob(job, status string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(job, status).Inc()
}
