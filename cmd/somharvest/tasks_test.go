package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"somharvest/internal/runner"
	"somharvest/pkg/checkpoint"
	"somharvest/pkg/config"
	"somharvest/pkg/harvest"
	"somharvest/pkg/logger"
	"somharvest/pkg/metrics"
	"somharvest/pkg/storage"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Output.Directory = dir
	cfg.Jobs = []config.JobConfig{
		{
			Name:           "users",
			Kind:           config.JobKindPaginated,
			BaseURL:        "https://api.test/users?page=",
			RecordsField:   "users",
			UserAgent:      "SoMUsersScraper/1.0 (Pls dont ban)",
			CheckpointFile: "resume.json",
			OutputFile:     "users.json",
		},
		{
			Name:           "shells",
			Kind:           config.JobKindOneShot,
			BaseURL:        "https://api.test/leaderboard",
			RecordsField:   "entries",
			FallbackFields: []string{"items"},
			OutputFile:     "shells.json",
		},
	}
	return cfg
}

func testDeps(t *testing.T, cfg *config.Config, transport *httpmock.MockTransport) taskDeps {
	t.Helper()
	out, err := storage.NewManager(cfg.Output.Directory)
	require.NoError(t, err)
	return taskDeps{
		cfg:       cfg,
		seed:      "session=s1",
		output:    out,
		metrics:   metrics.New(),
		logger:    logger.NewNopLogger(),
		transport: transport,
		sleep:     noSleep,
	}
}

func TestHarvestJobResolvesCheckpointPath(t *testing.T) {
	dir := t.TempDir()
	out, err := storage.NewManager(dir)
	require.NoError(t, err)

	jobs := testConfig(dir).Jobs
	users := harvestJob(jobs[0], out)
	assert.Equal(t, harvest.KindPaginated, users.Kind)
	assert.Equal(t, filepath.Join(dir, "resume.json"), users.CheckpointFile)

	shells := harvestJob(jobs[1], out)
	assert.Equal(t, harvest.KindOneShot, shells.Kind)
	assert.Empty(t, shells.CheckpointFile)

	jobs[0].Kind = ""
	assert.Equal(t, harvest.KindPaginated, harvestJob(jobs[0], out).Kind)
}

func TestBuildTasksEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	transport := httpmock.NewMockTransport()
	var userAgents []string
	var cookieHeaders []string
	transport.RegisterResponder("GET", "https://api.test/users?page=1", func(req *http.Request) (*http.Response, error) {
		userAgents = append(userAgents, req.Header.Get("User-Agent"))
		cookieHeaders = append(cookieHeaders, req.Header.Get("Cookie"))
		resp := httpmock.NewStringResponse(200, `{"users":[{"id":1},{"id":2}],"pagination":{"pages":2,"count":3}}`)
		resp.Header.Add("Set-Cookie", "visit=1; Path=/")
		return resp, nil
	})
	transport.RegisterResponder("GET", "https://api.test/users?page=2", func(req *http.Request) (*http.Response, error) {
		cookieHeaders = append(cookieHeaders, req.Header.Get("Cookie"))
		return httpmock.NewStringResponse(200, `{"users":[{"id":2},{"id":3}],"pagination":{"pages":2,"count":3}}`), nil
	})
	transport.RegisterResponder("GET", "https://api.test/leaderboard",
		httpmock.NewStringResponder(200, `{"items":[{"slack_id":"U1","shells":5}]}`))

	tasks, err := buildTasks(cfg.Jobs, testDeps(t, cfg, transport))
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	report := runner.New(1, logger.NewNopLogger()).Run(context.Background(), tasks)
	require.NoError(t, report.Err())

	assert.Equal(t, []string{"SoMUsersScraper/1.0 (Pls dont ban)"}, userAgents)
	assert.Equal(t, []string{"session=s1", "session=s1; visit=1"}, cookieHeaders)

	var users struct {
		Total         int               `json:"total"`
		ExpectedTotal *int              `json:"expected_total"`
		Users         []json.RawMessage `json:"users"`
		Cookies       map[string]string `json:"cookies"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &users))
	assert.Equal(t, 3, users.Total)
	require.NotNil(t, users.ExpectedTotal)
	assert.Equal(t, 3, *users.ExpectedTotal)
	assert.Equal(t, map[string]string{"session": "s1", "visit": "1"}, users.Cookies)
	assert.NoFileExists(t, filepath.Join(dir, "resume.json"))

	var shells struct {
		Entries []map[string]any `json:"entries"`
	}
	data, err = os.ReadFile(filepath.Join(dir, "shells.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &shells))
	require.Len(t, shells.Entries, 1)
	assert.Equal(t, "U1", shells.Entries[0]["slack_id"])

	rows := summaryRows(report)
	require.Len(t, rows, 2)
	assert.Equal(t, "done", rows[0].Status)
	assert.Equal(t, 3, rows[0].Records)
	assert.Equal(t, 2, rows[0].Pages)
}

func TestBuildTasksFreshDiscardsCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Jobs = cfg.Jobs[:1]

	cps := checkpoint.NewManager(filepath.Join(dir, "resume.json"), "users", logger.NewNopLogger())
	require.NoError(t, cps.Save(&checkpoint.Checkpoint{Page: 4}))

	deps := testDeps(t, cfg, httpmock.NewMockTransport())
	_, err := buildTasks(cfg.Jobs, deps)
	require.NoError(t, err)
	assert.FileExists(t, cps.Path())

	deps.fresh = true
	_, err = buildTasks(cfg.Jobs, deps)
	require.NoError(t, err)
	assert.NoFileExists(t, cps.Path())
}

func TestBuildTasksRejectsBadRateLimit(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.RateLimit.RequestsPerMinute = 10
	cfg.RateLimit.Strategy = "leaky"

	_, err := buildTasks(cfg.Jobs, testDeps(t, cfg, httpmock.NewMockTransport()))
	assert.Error(t, err)
}

func TestSummaryRowsFailureAndSkip(t *testing.T) {
	boom := errors.New("retries exhausted on page 3")
	report := &runner.Report{Outcomes: []runner.Outcome{
		{Task: "users", Result: &harvest.Result{State: harvest.StateStoppedOnError, Pages: 2}, Err: boom},
		{Task: "projects", Skipped: true},
	}}

	rows := summaryRows(report)
	assert.Equal(t, "failed", rows[0].Status)
	assert.Equal(t, boom, rows[0].Err)
	assert.Equal(t, 2, rows[0].Pages)
	assert.Equal(t, "skipped", rows[1].Status)
}

func TestSummaryRowsInterruptedSkipIsAnError(t *testing.T) {
	interrupted := fmt.Errorf("job shells not started: %w", context.Canceled)
	report := &runner.Report{Outcomes: []runner.Outcome{
		{Task: "users", Result: &harvest.Result{State: harvest.StateDone, Pages: 1, Total: 3}},
		{Task: "shells", Skipped: true, Err: interrupted},
	}}

	rows := summaryRows(report)
	assert.Equal(t, "done", rows[0].Status)
	assert.Equal(t, "skipped", rows[1].Status)
	assert.ErrorIs(t, rows[1].Err, context.Canceled)
	assert.ErrorIs(t, report.Err(), context.Canceled)
}

func TestStatusRow(t *testing.T) {
	dir := t.TempDir()
	out, err := storage.NewManager(dir)
	require.NoError(t, err)
	jobs := testConfig(dir).Jobs
	log := logger.NewNopLogger()

	row := statusRow(jobs[0], out, log)
	assert.False(t, row.Checkpoint)
	assert.Equal(t, "-", row.Output)

	total := 9
	cps := checkpoint.NewManager(filepath.Join(dir, "resume.json"), "users", log)
	require.NoError(t, cps.Save(&checkpoint.Checkpoint{
		Page:       3,
		Records:    []json.RawMessage{json.RawMessage(`{"id":1}`)},
		TotalPages: &total,
		Cookies:    map[string]string{"visit": "2", "session": "s1"},
	}))
	row = statusRow(jobs[0], out, log)
	assert.True(t, row.Checkpoint)
	assert.Equal(t, 3, row.NextPage)
	assert.Equal(t, 1, row.Records)
	assert.Equal(t, "session, visit", row.Cookies)
	assert.NotContains(t, row.Cookies, "s1")

	require.NoError(t, os.WriteFile(cps.Path(), []byte(`{"page":`), 0600))
	row = statusRow(jobs[0], out, log)
	assert.False(t, row.Checkpoint)
	assert.Equal(t, "corrupt checkpoint", row.Note)

	row = statusRow(jobs[1], out, log)
	assert.Equal(t, "single request", row.Note)
}

func TestResolveSeedPrefersConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cookies.Seed = "a=1; b=2"
	assert.Equal(t, "a=1; b=2", resolveSeed(cfg, logger.NewNopLogger()))
}

func TestReadLine(t *testing.T) {
	line, err := readLine(strings.NewReader("  session=abc \n"))
	require.NoError(t, err)
	assert.Equal(t, "session=abc", line)

	line, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", line)

	_, err = readLine(strings.NewReader(""))
	assert.Error(t, err)
}
