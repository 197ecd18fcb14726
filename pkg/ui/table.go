package ui

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// JobRow is one line of the run summary
type JobRow struct {
	Name     string
	Status   string
	Resumed  bool
	Pages    int
	Records  int
	Expected *int
	Duration time.Duration
	Output   string
	Err      error
}

// StatusRow is one line of the checkpoint status table
type StatusRow struct {
	Name       string
	Checkpoint bool
	NextPage   int
	Records    int
	TotalPages *int
	TotalCount *int
	Cookies    string
	Age        time.Duration
	Output     string
	Note       string
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleRounded
	// footers carry values like "1.50 min"; keep them as written
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	return t
}

// RenderSummary prints the per-job results of a run
func RenderSummary(w io.Writer, rows []JobRow, elapsed time.Duration) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Job", "Status", "Pages", "Records", "Expected", "Duration", "Output"})

	total := 0
	for _, r := range rows {
		status := r.Status
		switch {
		case r.Err != nil:
			status = Red(status)
		case status == "done":
			status = Green(status)
		default:
			status = Yellow(status)
		}
		if r.Resumed {
			status += " (resumed)"
		}
		output := r.Output
		if r.Err != nil {
			output = r.Err.Error()
		}
		t.AppendRow(table.Row{
			r.Name,
			status,
			r.Pages,
			r.Records,
			optional(r.Expected),
			r.Duration.Round(time.Millisecond).String(),
			output,
		})
		total += r.Records
	}

	t.AppendFooter(table.Row{"Total", "", "", total, "", FormatMinutes(elapsed), ""})
	t.Render()
}

// RenderStatus prints the checkpoint state of each job
func RenderStatus(w io.Writer, rows []StatusRow) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Job", "Next page", "Records", "Total pages", "Total count", "Cookies", "Age", "Output"})

	for _, r := range rows {
		if !r.Checkpoint {
			note := r.Note
			if note == "" {
				note = "no checkpoint"
			}
			t.AppendRow(table.Row{r.Name, Dim(note), "", "", "", "", "", r.Output})
			continue
		}
		t.AppendRow(table.Row{
			r.Name,
			r.NextPage,
			r.Records,
			optional(r.TotalPages),
			optional(r.TotalCount),
			r.Cookies,
			r.Age.Round(time.Second).String(),
			r.Output,
		})
	}
	t.Render()
}

// FormatMinutes renders a duration as fractional minutes, e.g. "1.25 min"
func FormatMinutes(d time.Duration) string {
	return fmt.Sprintf("%.2f min", d.Minutes())
}

func optional(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
