package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"areacapture/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past generations",
	Long: `history lists recorded generation jobs, newest first. With --capture it
lists the status changes of one capture instead. --prune-days deletes
records older than the given number of days before listing.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyLimitFlag     int
	historyJSONFlag      bool
	historyCaptureFlag   string
	historyPruneDaysFlag int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of jobs to show")
	historyCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "Output as JSON")
	historyCmd.Flags().StringVar(&historyCaptureFlag, "capture", "", "Show the status changes of this capture ID")
	historyCmd.Flags().IntVar(&historyPruneDaysFlag, "prune-days", -1, "Delete records older than N days first")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if historyPruneDaysFlag >= 0 {
		result, err := database.Cleanup(ctx, historyPruneDaysFlag)
		if err != nil {
			return err
		}
		if !historyJSONFlag {
			fmt.Fprintf(out, "Pruned %d records in %s\n", result.TotalDeleted, result.Duration.Round(time.Millisecond))
		}
	}

	repo := db.NewRepository(database, nil)
	if historyCaptureFlag != "" {
		events, err := repo.ListCaptureEvents(ctx, historyCaptureFlag)
		if err != nil {
			return err
		}
		if historyJSONFlag {
			return writeJSON(out, events)
		}
		printCaptureEvents(out, events)
		return nil
	}

	entries, err := repo.ListGenerations(ctx, historyLimitFlag)
	if err != nil {
		return err
	}
	if historyJSONFlag {
		if entries == nil {
			entries = []db.GenerationEntry{}
		}
		return writeJSON(out, entries)
	}
	printGenerations(out, entries)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printGenerations(w io.Writer, entries []db.GenerationEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No generations recorded")
		return
	}

	for _, e := range entries {
		clr := color.New(color.FgGreen)
		switch e.Outcome {
		case "generation_success":
		case "generation_canceled":
			clr = color.New(color.FgYellow)
		default:
			clr = color.New(color.FgRed)
		}

		fmt.Fprintf(w, "%s  %-20s ", shortID(e.JobID), e.TargetName)
		clr.Fprintf(w, "%-40s", e.Outcome)
		fmt.Fprintf(w, " %5d kf  %8s  %s\n",
			e.Keyframes, e.Duration.Round(time.Millisecond), humanize.Time(e.FinishedAt))
		if e.ErrorMessage != "" {
			color.New(color.FgHiBlack).Fprintf(w, "          └─ %s\n", e.ErrorMessage)
		}
	}
}

func printCaptureEvents(w io.Writer, events []db.CaptureEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events recorded for this capture")
		return
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%s  %-11s -> %-11s %s\n",
			ev.OccurredAt.Local().Format("15:04:05.000"), ev.FromStatus, ev.ToStatus, ev.StatusInfo)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
