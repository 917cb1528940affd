package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediasync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		mode       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync, prune and bootstrap runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			switch mode {
			case "", "sync", "prune", "bootstrap":
			default:
				return fmt.Errorf("--mode: unsupported value %q (expected sync, prune or bootstrap)", mode)
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit, mode)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					formatTime(run.StartedAt),
					runModeLabel(run),
					itoa(run.Listed),
					itoa(run.Transferred + run.Deleted + run.Initialized),
					itoa(run.Duplicates),
					itoa(run.Failed),
					formatBytes(run.Bytes),
					formatDuration(run.Duration()),
					runStatusLabel(run),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Mode", "Listed", "Changed", "Duplicates", "Failed", "Bytes", "Duration", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&mode, "mode", "", "Only show runs of this mode (sync, prune, bootstrap)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output runs as JSON")
	return cmd
}

func runModeLabel(run history.Run) string {
	if run.DryRun {
		return run.Mode + " (dry run)"
	}
	return run.Mode
}

func runStatusLabel(run history.Run) string {
	switch {
	case run.Error != "" && run.ErrorKind != "":
		return "error: " + run.ErrorKind
	case run.Error != "":
		return "error"
	case run.Failed > 0:
		return fmt.Sprintf("%s failed", countLabel(run.Failed, "item"))
	default:
		return "ok"
	}
}
