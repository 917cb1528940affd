package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mediasync/internal/runner"
	"mediasync/internal/syncer"
)

// errRunHadFailures signals a completed run with failed items so the process
// exits non-zero after the results are printed.
var errRunHadFailures = errors.New("run finished with failures")

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun       bool
		force        bool
		deleteRemote bool
		trackingFile string
		jsonOutput   bool
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Transfer new remote files into the local library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.applyTrackingOverride(trackingFile); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("delete-remote") {
				cfg.Sync.DeleteRemoteAfterTransfer = deleteRemote
			}

			var opts []runner.Option
			if !jsonOutput && !noProgress && shouldColorize(os.Stderr) {
				opts = append(opts, runner.WithProgress(newBarProgress(os.Stderr)))
			}
			r, err := ctx.newRunner(opts...)
			if err != nil {
				return err
			}

			result, runErr := r.Sync(cmd.Context(), runner.SyncRequest{DryRun: dryRun, Force: force})
			if runErr != nil {
				return runErr
			}
			if jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				printSyncResult(cmd.OutOrStdout(), result)
			}
			if result.HasFailures() {
				return fmt.Errorf("%w: %d failed, %d ledger error(s), %d remote delete failure(s)",
					errRunHadFailures, result.Failed, result.LedgerErrors, result.DeleteFailures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be transferred without changing anything")
	cmd.Flags().BoolVar(&force, "force", false, "Re-transfer tracked files and skip local duplicate checks")
	cmd.Flags().BoolVar(&deleteRemote, "delete-remote", false, "Delete remote files after a verified transfer (overrides sync.delete_remote_after_transfer)")
	cmd.Flags().StringVar(&trackingFile, "tracking-file", "", "Tracking ledger path (overrides sync.tracking_file)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable transfer progress bars")
	return cmd
}

func printSyncResult(out io.Writer, result syncer.Result) {
	title := "Sync complete"
	if result.DryRun {
		title = "Sync dry run"
	}
	fmt.Fprintln(out, title)

	pairs := [][2]string{
		{"Listed", itoa(result.Listed)},
		{"Already tracked", itoa(result.AlreadyTracked)},
	}
	if result.DryRun {
		pairs = append(pairs,
			[2]string{"Planned", itoa(result.Planned)},
			[2]string{"Planned bytes", formatBytes(result.PlannedBytes)},
		)
	} else {
		pairs = append(pairs,
			[2]string{"Transferred", itoa(result.Transferred)},
			[2]string{"Bytes", formatBytes(result.Bytes)},
		)
	}
	pairs = append(pairs,
		[2]string{"Duplicates", itoa(result.Duplicates)},
		[2]string{"Failed", itoa(result.Failed)},
	)
	if result.RemoteDeleted > 0 || result.DeleteFailures > 0 {
		pairs = append(pairs, [2]string{"Remote deleted", itoa(result.RemoteDeleted)})
	}
	if result.DeleteFailures > 0 {
		pairs = append(pairs, [2]string{"Remote delete failures", itoa(result.DeleteFailures)})
	}
	if result.LedgerErrors > 0 {
		pairs = append(pairs, [2]string{"Ledger errors", itoa(result.LedgerErrors)})
	}
	if result.FailedDirs > 0 {
		pairs = append(pairs, [2]string{"Unreadable directories", itoa(result.FailedDirs)})
	}
	pairs = append(pairs, [2]string{"Duration", formatDuration(result.Duration)})
	fmt.Fprintln(out, renderSummary(pairs))

	if len(result.Items) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		note := item.Error
		if note == "" && item.Resumed {
			note = "resumed"
		}
		if note == "" && item.RemoteDeleted {
			note = "remote deleted"
		}
		target := item.LocalPath
		if target == "" {
			target = item.Destination
		}
		rows = append(rows, []string{string(item.Outcome), item.RemotePath, target, formatBytes(item.Size), note})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Outcome", "Remote", "Local", "Size", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
