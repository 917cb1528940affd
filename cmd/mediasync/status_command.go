package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediasync/internal/history"
	"mediasync/internal/preflight"
	"mediasync/internal/tracking"
)

var statusModes = []string{"sync", "prune", "bootstrap"}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show readiness checks, ledger size and the latest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Readiness", colorize)...)
			for _, result := range preflight.RunAll(cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Ledger", colorize)...)
			entries, err := tracking.ReadSnapshot(cfg.Sync.TrackingFile)
			if err != nil {
				lines = append(lines, renderStatusLine("Tracked files", statusError, err.Error(), colorize))
			} else {
				var bytes int64
				for _, entry := range entries {
					bytes += entry.Size
				}
				lines = append(lines, renderStatusLine("Tracked files", statusInfo,
					fmt.Sprintf("%d (%s) in %s", len(entries), formatBytes(bytes), cfg.Sync.TrackingFile), colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Last runs", colorize)...)
			lines = append(lines, lastRunLines(cmd, cfg.HistoryPath(), colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func lastRunLines(cmd *cobra.Command, path string, colorize bool) []string {
	store, err := history.Open(path)
	if err != nil {
		return []string{renderStatusLine("History", statusWarn, err.Error(), colorize)}
	}
	defer store.Close()

	latest, err := store.Latest(cmd.Context())
	if err != nil {
		return []string{renderStatusLine("History", statusWarn, err.Error(), colorize)}
	}
	now := time.Now()
	lines := make([]string, 0, len(statusModes))
	for _, mode := range statusModes {
		run, ok := latest[mode]
		if !ok {
			lines = append(lines, renderStatusLine(mode, statusInfo, "never run", colorize))
			continue
		}
		kind := statusOK
		switch {
		case run.Error != "":
			kind = statusError
		case run.Failed > 0:
			kind = statusWarn
		}
		detail := fmt.Sprintf("%s, %s", formatAge(run.FinishedAt, now), runStatusLabel(run))
		lines = append(lines, renderStatusLine(mode, kind, detail, colorize))
	}
	return lines
}
