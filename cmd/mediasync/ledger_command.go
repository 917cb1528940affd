package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediasync/internal/config"
	"mediasync/internal/fileutil"
	"mediasync/internal/tracking"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var trackingFile string

	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the tracking ledger",
	}
	ledgerCmd.PersistentFlags().StringVar(&trackingFile, "tracking-file", "", "Tracking ledger path (overrides sync.tracking_file)")

	ledgerCmd.AddCommand(newLedgerListCommand(ctx, &trackingFile))
	ledgerCmd.AddCommand(newLedgerBackupCommand(ctx, &trackingFile))
	return ledgerCmd
}

type ledgerRow struct {
	RemotePath string `json:"RemotePath"`
	tracking.Entry
}

func newLedgerListCommand(ctx *commandContext, trackingFile *string) *cobra.Command {
	var (
		jsonOutput bool
		contains   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked remote files",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadLedgerSnapshot(ctx, *trackingFile)
			if err != nil {
				return err
			}
			filter := strings.ToLower(strings.TrimSpace(contains))
			var rows []ledgerRow
			for _, path := range entries.Paths() {
				if filter != "" && !strings.Contains(strings.ToLower(path), filter) {
					continue
				}
				rows = append(rows, ledgerRow{RemotePath: path, Entry: entries[path]})
			}

			if jsonOutput {
				if rows == nil {
					rows = []ledgerRow{}
				}
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No tracked files")
				return nil
			}
			now := time.Now()
			tableRows := make([][]string, 0, len(rows))
			for _, row := range rows {
				tableRows = append(tableRows, []string{
					row.RemotePath,
					displayLocalPath(row.Entry),
					formatBytes(row.Size),
					formatAge(row.DownloadedAt, now),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Remote", "Local", "Size", "Downloaded"},
				tableRows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%s tracked\n", countLabel(len(rows), "file"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	cmd.Flags().StringVar(&contains, "contains", "", "Only show remote paths containing this text (case-insensitive)")
	return cmd
}

func newLedgerBackupCommand(ctx *commandContext, trackingFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <destination>",
		Short: "Copy the ledger to destination with integrity verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := ledgerPath(ctx, *trackingFile)
			if err != nil {
				return err
			}
			if _, err := os.Stat(source); os.IsNotExist(err) {
				return fmt.Errorf("no ledger at %s", source)
			}
			// Refuse to copy a ledger that would not load.
			if _, err := tracking.ReadSnapshot(source); err != nil {
				return err
			}
			dest, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}
			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				dest = filepath.Join(dest, "tracking-"+time.Now().UTC().Format("20060102T150405Z")+".json")
			}
			written, err := fileutil.CopyFileVerified(source, dest)
			if err != nil {
				return fmt.Errorf("back up ledger: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %s (%s) to %s\n", source, formatBytes(written), dest)
			return nil
		},
	}
}

func ledgerPath(ctx *commandContext, override string) (string, error) {
	if err := ctx.applyTrackingOverride(override); err != nil {
		return "", err
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Sync.TrackingFile, nil
}

func loadLedgerSnapshot(ctx *commandContext, override string) (tracking.Entries, error) {
	path, err := ledgerPath(ctx, override)
	if err != nil {
		return nil, err
	}
	return tracking.ReadSnapshot(path)
}

func displayLocalPath(entry tracking.Entry) string {
	switch {
	case entry.Initialized:
		return "(bootstrapped)"
	case entry.ManualTransfer:
		return entry.LocalPath + " (manual)"
	default:
		return entry.LocalPath
	}
}
