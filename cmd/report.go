package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/pmx/internal/formatter"
	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Status prints per-collection state counts, or exports every photo as CSV.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	library, err := r.openLibrary()
	if err != nil {
		return err
	}
	entries, err := library.Entries()
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if format == "csv" {
		if path := cmd.String("output"); path != "" {
			if err := formatter.WriteCSVExport(entries, path); err != nil {
				return err
			}
			return r.writePlain("✓ Exported %d photo(s) to %s\n", len(entries), path)
		}
		data, err := formatter.ExportToCSV(entries)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	albums, err := library.Albums()
	if err != nil {
		return err
	}
	report := formatter.NewReport(entries, albums)

	switch format {
	case "json":
		data, err := formatter.ExportToJSON(report)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "text", "":
		data, err := formatter.ExportToText(report)
		if err != nil {
			return err
		}
		r.writePlainHeader("Library status")
		return r.writePlain("%s", data)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

type historyRow struct {
	RunID      string        `json:"run_id"`
	Stage      string        `json:"stage"`
	Pass       int           `json:"pass"`
	Succeeded  int           `json:"succeeded"`
	Attempted  int           `json:"attempted"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
}

func newHistoryRow(run *models.StageRun) historyRow {
	return historyRow{
		RunID:      run.RunID,
		Stage:      run.Stage,
		Pass:       run.Pass,
		Succeeded:  run.Succeeded,
		Attempted:  run.Attempted,
		Outcome:    string(run.Outcome),
		Error:      run.ErrorMessage,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Duration:   run.Duration(),
	}
}

// History lists recorded orchestrator passes, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.openRuns()
	if err != nil {
		return err
	}

	records, err := runs.List(map[string]any{
		"stage":  cmd.String("stage"),
		"run_id": cmd.String("run"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	rows := make([]historyRow, 0, len(records))
	for _, run := range records {
		rows = append(rows, newHistoryRow(run))
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	if len(rows) == 0 {
		return r.writePlain("No passes recorded yet.\n")
	}

	r.writePlainHeader("Stage history")
	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTAGE\tPASS\tTALLY\tOUTCOME\tDURATION\tRUN")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d/%d\t%s\t%s\t%s\n",
			row.StartedAt.Local().Format(time.DateTime), row.Stage, row.Pass,
			row.Succeeded, row.Attempted, row.Outcome, row.Duration.Round(time.Millisecond), shortID(row.RunID))
		if row.Error != "" {
			fmt.Fprintf(tw, "\t\t\t\t\t\t  error: %s\n", row.Error)
		}
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
