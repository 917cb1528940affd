package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mediasync/internal/bootstrap"
	"mediasync/internal/runner"
)

func newBootstrapCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun       bool
		trackingFile string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Mark every current remote file as already downloaded",
		Long: "Bootstrap seeds the tracking ledger with every file currently on the remote, " +
			"using each file's modification time as its download time. Use it once when " +
			"adopting mediasync for a remote whose content is already in the library.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.applyTrackingOverride(trackingFile); err != nil {
				return err
			}
			r, err := ctx.newRunner()
			if err != nil {
				return err
			}
			result, err := r.Bootstrap(cmd.Context(), runner.BootstrapRequest{DryRun: dryRun})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printBootstrapResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count files without writing the ledger")
	cmd.Flags().StringVar(&trackingFile, "tracking-file", "", "Tracking ledger path (overrides sync.tracking_file)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func printBootstrapResult(out io.Writer, result bootstrap.Result) {
	title := "Bootstrap complete"
	if result.DryRun {
		title = "Bootstrap dry run"
	}
	fmt.Fprintln(out, title)
	pairs := [][2]string{
		{"Listed", itoa(result.Listed)},
		{"Newly tracked", itoa(result.NewlyTracked)},
		{"Already tracked", itoa(result.AlreadyTracked)},
		{"Total tracked", itoa(result.TotalTracked)},
	}
	if result.FailedDirs > 0 {
		pairs = append(pairs, [2]string{"Unreadable directories", itoa(result.FailedDirs)})
	}
	pairs = append(pairs, [2]string{"Duration", formatDuration(result.Duration)})
	fmt.Fprintln(out, renderSummary(pairs))
}
