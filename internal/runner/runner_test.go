package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"somharvest/pkg/harvest"
	"somharvest/pkg/logger"
)

type fakeTask struct {
	name    string
	err     error
	delay   time.Duration
	started atomic.Bool
	onStart func()
	onDone  func()
}

func (f *fakeTask) Name() string { return f.name }

func (f *fakeTask) Run(ctx context.Context) (*harvest.Result, error) {
	f.started.Store(true)
	if f.onStart != nil {
		f.onStart()
	}
	if f.onDone != nil {
		defer f.onDone()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &harvest.Result{Job: f.name, State: harvest.StateDone, Total: 1}, nil
}

func tasks(fakes ...*fakeTask) []harvest.Task {
	out := make([]harvest.Task, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func TestRunSequentialSuccess(t *testing.T) {
	log := logger.NewTestLogger()
	r := New(1, log)

	a, b := &fakeTask{name: "users"}, &fakeTask{name: "projects"}
	report := r.Run(context.Background(), tasks(a, b))

	require.NoError(t, report.Err())
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "users", report.Outcomes[0].Task)
	assert.Equal(t, "projects", report.Outcomes[1].Task)
	assert.Equal(t, 1, report.Outcomes[1].Result.Total)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, r.RunID(), report.RunID)

	assert.True(t, log.HasMessage("Job started"))
	assert.True(t, log.HasMessage("Job finished"))
	assert.True(t, log.HasMessage("Run finished"))
	assert.False(t, log.HasError())
}

func TestRunSequentialStopsAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeTask{name: "users", err: boom}
	b := &fakeTask{name: "projects"}

	report := New(1, logger.NewNopLogger()).Run(context.Background(), tasks(a, b))

	assert.ErrorIs(t, report.Err(), boom)
	assert.False(t, b.started.Load())
	assert.True(t, report.Outcomes[1].Skipped)
	assert.Nil(t, report.Outcomes[1].Err)
}

func TestRunParallelRunsConcurrently(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	track := func() {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
	}
	untrack := func() {
		mu.Lock()
		running--
		mu.Unlock()
	}

	fakes := make([]*fakeTask, 4)
	for i := range fakes {
		fakes[i] = &fakeTask{name: string(rune('a' + i)), delay: 50 * time.Millisecond, onStart: track, onDone: untrack}
	}

	report := New(2, logger.NewNopLogger()).Run(context.Background(), tasks(fakes...))

	require.NoError(t, report.Err())
	for i, o := range report.Outcomes {
		assert.Equal(t, fakes[i].name, o.Task)
		assert.False(t, o.Skipped)
	}
	assert.Equal(t, 2, peak)
}

func TestRunParallelFailureSkipsPending(t *testing.T) {
	boom := errors.New("boom")
	slow := &fakeTask{name: "slow", delay: 50 * time.Millisecond}
	failing := &fakeTask{name: "failing", err: boom}
	pending := &fakeTask{name: "pending"}

	report := New(2, logger.NewNopLogger()).Run(context.Background(), tasks(slow, failing, pending))

	assert.ErrorIs(t, report.Err(), boom)
	// tasks already running are left to finish
	assert.NoError(t, report.Outcomes[0].Err)
	assert.NotNil(t, report.Outcomes[0].Result)
	assert.True(t, report.Outcomes[2].Skipped)
	assert.False(t, pending.started.Load())
}

func TestRunCancelledContextSkipsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &fakeTask{name: "users"}
	report := New(1, logger.NewNopLogger()).Run(ctx, tasks(a))

	assert.True(t, report.Outcomes[0].Skipped)
	assert.ErrorIs(t, report.Outcomes[0].Err, context.Canceled)
	assert.False(t, a.started.Load())
}

func TestRunInterruptedBetweenJobsFails(t *testing.T) {
	for _, parallel := range []int{1, 2} {
		ctx, cancel := context.WithCancel(context.Background())

		first := &fakeTask{name: "users", onDone: cancel}
		// with two slots the second job starts alongside the first, so a third
		// is the one left waiting
		blocker := &fakeTask{name: "projects", delay: 200 * time.Millisecond}
		second := &fakeTask{name: "shells"}
		jobs := tasks(first, second)
		if parallel > 1 {
			jobs = tasks(first, blocker, second)
		}

		log := logger.NewTestLogger()
		report := New(parallel, log).Run(ctx, jobs)
		cancel()

		last := report.Outcomes[len(report.Outcomes)-1]
		assert.False(t, second.started.Load(), "parallel=%d", parallel)
		assert.True(t, last.Skipped, "parallel=%d", parallel)
		assert.ErrorIs(t, report.Err(), context.Canceled, "parallel=%d", parallel)
		assert.True(t, log.HasMessage("Run failed"), "parallel=%d", parallel)
	}
}

func TestRunElapsed(t *testing.T) {
	r := New(0, logger.NewNopLogger())
	base := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	calls := 0
	r.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 30 * time.Second)
	}

	report := r.Run(context.Background(), tasks(&fakeTask{name: "users"}))

	assert.Equal(t, 1, r.parallel)
	assert.Equal(t, 90*time.Second, report.Elapsed)
	assert.Equal(t, 30*time.Second, report.Outcomes[0].Duration)
}
