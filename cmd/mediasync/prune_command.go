package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mediasync/internal/pruner"
	"mediasync/internal/runner"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var (
		days         int
		dryRun       bool
		trackingFile string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete remote files downloaded more than --days ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.applyTrackingOverride(trackingFile); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("days") {
				if days < 0 {
					return errors.New("--days must be >= 0")
				}
				cfg.Prune.DaysOld = days
			}

			r, err := ctx.newRunner()
			if err != nil {
				return err
			}
			result, runErr := r.Prune(cmd.Context(), runner.PruneRequest{DryRun: dryRun})
			if runErr != nil {
				return runErr
			}
			if jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				printPruneResult(cmd.OutOrStdout(), result)
			}
			if result.HasFailures() {
				return fmt.Errorf("%w: %d failed, %d ledger error(s)", errRunHadFailures, result.Failed, result.LedgerErrors)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (overrides prune.days_old)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deleted without changing anything")
	cmd.Flags().StringVar(&trackingFile, "tracking-file", "", "Tracking ledger path (overrides sync.tracking_file)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func printPruneResult(out io.Writer, result pruner.Result) {
	title := "Prune complete"
	if result.DryRun {
		title = "Prune dry run"
	}
	fmt.Fprintf(out, "%s (older than %s, before %s)\n", title, countLabel(result.DaysOld, "day"), formatTime(result.Cutoff))

	pairs := [][2]string{
		{"Tracked", itoa(result.Tracked)},
		{"Eligible", itoa(result.Eligible)},
		{"Deleted", itoa(result.Deleted)},
		{"Already gone", itoa(result.AlreadyGone)},
		{"Failed", itoa(result.Failed)},
		{"Freed", formatBytes(result.Bytes)},
	}
	if result.LedgerErrors > 0 {
		pairs = append(pairs, [2]string{"Ledger errors", itoa(result.LedgerErrors)})
	}
	pairs = append(pairs, [2]string{"Duration", formatDuration(result.Duration)})
	fmt.Fprintln(out, renderSummary(pairs))

	if len(result.Items) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		rows = append(rows, []string{
			string(item.Outcome),
			item.RemotePath,
			formatTime(item.DownloadedAt),
			formatBytes(item.Size),
			item.Error,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Outcome", "Remote", "Downloaded", "Size", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
