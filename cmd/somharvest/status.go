package main

import (
	"strings"

	"github.com/spf13/cobra"

	"somharvest/pkg/config"
	errs "somharvest/pkg/errors"
	"somharvest/pkg/logger"
	"somharvest/pkg/storage"
	"somharvest/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [job...]",
	Short: "Show checkpoint and output state of each job",
	Long: `Show where each job would resume: the next page, how many records are
already held, the totals reported by the server and which cookies the
checkpoint carries. Cookie values are never printed.`,
	Args: cobra.ArbitraryArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	jobs, err := cfg.SelectJobs(args)
	if err != nil {
		return err
	}
	out, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}

	rows := make([]ui.StatusRow, 0, len(jobs))
	for _, jc := range jobs {
		rows = append(rows, statusRow(jc, out, logger.GetLogger()))
	}
	ui.RenderStatus(ui.Out, rows)
	return nil
}

func statusRow(jc config.JobConfig, out *storage.Manager, log logger.Logger) ui.StatusRow {
	row := ui.StatusRow{Name: jc.Name, Output: "-"}

	if file, err := out.Stat(jc.OutputFile); err == nil && file != nil {
		row.Output = file.ModTime.Format("2006-01-02 15:04")
	}

	job := harvestJob(jc, out)
	if job.CheckpointFile == "" {
		row.Note = "single request"
		return row
	}

	info, err := checkpointManager(job, log).Info()
	switch {
	case errs.Is(err, errs.ErrorTypeCheckpointCorrupt):
		row.Note = "corrupt checkpoint"
	case err != nil:
		row.Note = err.Error()
	case info != nil:
		row.Checkpoint = true
		row.NextPage = info.Page
		row.Records = info.Records
		row.TotalPages = info.TotalPages
		row.TotalCount = info.TotalCount
		row.Cookies = strings.Join(info.CookieNames, ", ")
		row.Age = info.Age
	}
	return row
}
