package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind selects how a job is harvested
type Kind string

const (
	// KindPaginated walks base_url+N with checkpoints
	KindPaginated Kind = "paginated"
	// KindOneShot fetches a single document
	KindOneShot Kind = "oneshot"
)

// Job describes one harvest target
type Job struct {
	Name string
	Kind Kind
	// BaseURL is completed with the page number for paginated jobs and used
	// as is for one-shot jobs.
	BaseURL string
	// RecordsField is the array read from each page and written to output
	RecordsField string
	// FallbackFields are tried in order when RecordsField is absent
	FallbackFields []string
	UserAgent      string
	CheckpointFile string
	OutputFile     string
}

// Fields lists the body fields that may hold records, in priority order.
func (j Job) Fields() []string {
	fields := make([]string, 0, 1+len(j.FallbackFields))
	fields = append(fields, j.RecordsField)
	return append(fields, j.FallbackFields...)
}

// Validate checks that the job can run
func (j Job) Validate() error {
	var errs []error
	if j.Name == "" {
		errs = append(errs, errors.New("job name is required"))
	}
	if j.BaseURL == "" {
		errs = append(errs, fmt.Errorf("job %q: base_url is required", j.Name))
	}
	if j.RecordsField == "" {
		errs = append(errs, fmt.Errorf("job %q: records_field is required", j.Name))
	}
	if j.OutputFile == "" {
		errs = append(errs, fmt.Errorf("job %q: output_file is required", j.Name))
	}
	switch j.Kind {
	case KindPaginated:
		if j.CheckpointFile == "" {
			errs = append(errs, fmt.Errorf("job %q: checkpoint_file is required", j.Name))
		}
	case KindOneShot:
	default:
		errs = append(errs, fmt.Errorf("job %q: unknown kind %q", j.Name, j.Kind))
	}
	return errors.Join(errs...)
}

// Result summarises one job run
type Result struct {
	Job           string
	State         State
	Resumed       bool
	StartPage     int
	Pages         int
	Added         int
	Total         int
	ExpectedTotal *int
	OutputPath    string
	Elapsed       time.Duration
}

// Task is a runnable job
type Task interface {
	Name() string
	Run(ctx context.Context) (*Result, error)
}
