package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"somharvest/internal/runner"
	"somharvest/pkg/auth"
	"somharvest/pkg/config"
	"somharvest/pkg/logger"
	"somharvest/pkg/metrics"
	"somharvest/pkg/storage"
	"somharvest/pkg/ui"
)

var (
	// Scrape command flags
	outputDir   string
	cookieSeed  string
	profileName string
	parallel    int
	maxRetries  int
	rpm         int
	timeout     time.Duration
	metricsAddr string
	fresh       bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [job...]",
	Short: "Harvest one or more jobs",
	Long: `Harvest the named jobs, or every enabled job when none is named.

Paginated jobs checkpoint after every page. Rerunning after a failure picks
up at the first page that was not saved, with the cookies the server handed
out so far. Use --fresh to throw the checkpoint away and start at page 1.

The initial cookie header is taken from, in order:
  - the --cookies flag
  - SOM_COOKIES or COOKIES
  - cookies.seed in the config file
  - the stored cookie profile (see 'somharvest cookies set')`,
	Example: `  # Harvest everything
  somharvest scrape

  # Only users, with an explicit session cookie
  somharvest scrape users --cookies "_session=abc123"

  # Users and projects side by side, paced to 30 requests a minute
  somharvest scrape users projects --parallel 2 --rpm 30

  # Ignore existing checkpoints
  somharvest scrape --fresh`,
	Args: cobra.ArbitraryArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: data/raw)")
	scrapeCmd.Flags().StringVar(&cookieSeed, "cookies", "", `initial cookie header, e.g. "a=1; b=2"`)
	scrapeCmd.Flags().StringVarP(&profileName, "profile", "p", "", "stored cookie profile to seed from")
	scrapeCmd.Flags().IntVar(&parallel, "parallel", 1, "number of jobs to run at once")
	scrapeCmd.Flags().IntVar(&maxRetries, "max-retries", 5, "retries per page after the first attempt")
	scrapeCmd.Flags().IntVar(&rpm, "rpm", 0, "requests per minute across all jobs (0 = unpaced)")
	scrapeCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for a single request")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	scrapeCmd.Flags().BoolVar(&fresh, "fresh", false, "discard checkpoints and start from page 1")
}

// scrapeFlags collects only the flags the user changed so config file and
// environment values are not clobbered by flag defaults.
func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed
	if changed("output") {
		flags["output"] = outputDir
	}
	if changed("cookies") {
		flags["cookies"] = cookieSeed
	}
	if changed("profile") {
		flags["profile"] = profileName
	}
	if changed("parallel") {
		flags["parallel"] = parallel
	}
	if changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if changed("rpm") {
		flags["rpm"] = rpm
	}
	if changed("timeout") {
		flags["timeout"] = timeout
	}
	if changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(scrapeFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	jobs, err := cfg.SelectJobs(args)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return errors.New("no jobs enabled")
	}

	out, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}

	seed := resolveSeed(cfg, log)
	if seed == "" {
		ui.PrintWarning("No cookies configured", "starting without a session")
	} else {
		ui.PrintInfo("Cookies", auth.MaskCookies(seed))
	}
	ui.PrintInfo("Output", out.GetOutputDir())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.ListenAddr != "" {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		done := m.Serve(metricsCtx, cfg.Metrics.ListenAddr, log)
		defer func() {
			cancelMetrics()
			<-done
		}()
	}

	r := runner.New(cfg.Runner.Parallel, log)
	tasks, err := buildTasks(jobs, taskDeps{
		cfg:     cfg,
		seed:    seed,
		fresh:   fresh,
		output:  out,
		metrics: m,
		logger:  r.Logger(),
	})
	if err != nil {
		return err
	}

	ui.PrintHighlight(fmt.Sprintf("[HARVESTING %d JOB(S)]", len(tasks)))
	report := r.Run(ctx, tasks)

	ui.RenderSummary(ui.Out, summaryRows(report), report.Elapsed)

	if err := report.Err(); err != nil {
		ui.PrintWarning("Checkpoints were kept", "rerun the same command to resume")
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("[HARVEST COMPLETED in %s]", ui.FormatMinutes(report.Elapsed)))
	return nil
}

// resolveSeed picks the initial cookie header. Flag, environment and config
// file have already been merged into cfg; the stored profile comes last.
func resolveSeed(cfg *config.Config, log logger.Logger) string {
	if cfg.Cookies.Seed != "" {
		return cfg.Cookies.Seed
	}
	manager, err := auth.NewManager(cfg.Cookies.Store)
	if err != nil {
		log.WithError(err).Warn("Cookie profiles unavailable")
		return ""
	}
	seed := manager.Seed(cfg.Cookies.Profile)
	if seed != "" {
		log.WithField("profile", cfg.Cookies.Profile).Info("Using stored cookie profile")
	}
	return seed
}

func summaryRows(report *runner.Report) []ui.JobRow {
	rows := make([]ui.JobRow, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		row := ui.JobRow{Name: o.Task, Duration: o.Duration, Err: o.Err}
		switch {
		case o.Skipped:
			row.Status = "skipped"
		case o.Result != nil:
			row.Status = strings.ToLower(o.Result.State.String())
			row.Resumed = o.Result.Resumed
			row.Pages = o.Result.Pages
			row.Records = o.Result.Total
			row.Expected = o.Result.ExpectedTotal
			row.Output = o.Result.OutputPath
		default:
			row.Status = "failed"
		}
		if o.Err != nil && !o.Skipped {
			row.Status = "failed"
		}
		rows = append(rows, row)
	}
	return rows
}
