package runner

import (
	"context"
	"errors"
	"time"

	"mediasync/internal/bootstrap"
	"mediasync/internal/history"
	"mediasync/internal/logging"
	"mediasync/internal/metrics"
	"mediasync/internal/notifications"
	"mediasync/internal/pruner"
	"mediasync/internal/services"
	"mediasync/internal/syncer"
)

// report is the mode-independent view of a finished run.
type report struct {
	listed      int
	transferred int
	duplicates  int
	failed      int
	deleted     int
	alreadyGone int
	initialized int
	bytes       int64
	files       map[string]int
}

func syncReport(result syncer.Result) report {
	return report{
		listed:      result.Listed,
		transferred: result.Transferred,
		duplicates:  result.Duplicates,
		failed:      result.Failed + result.LedgerErrors + result.DeleteFailures,
		deleted:     result.RemoteDeleted,
		bytes:       result.Bytes,
		files: map[string]int{
			string(syncer.OutcomeTransferred): result.Transferred,
			string(syncer.OutcomeDuplicate):   result.Duplicates,
			string(syncer.OutcomeFailed):      result.Failed,
			string(syncer.OutcomePlanned):     result.Planned,
			"already_tracked":                 result.AlreadyTracked,
		},
	}
}

func pruneReport(result pruner.Result) report {
	return report{
		listed:      result.Tracked,
		failed:      result.Failed + result.LedgerErrors,
		deleted:     result.Deleted,
		alreadyGone: result.AlreadyGone,
		bytes:       result.Bytes,
		files: map[string]int{
			string(pruner.OutcomeDeleted):     result.Deleted,
			string(pruner.OutcomeAlreadyGone): result.AlreadyGone,
			string(pruner.OutcomeFailed):      result.Failed,
			string(pruner.OutcomePlanned):     countPlanned(result),
		},
	}
}

func countPlanned(result pruner.Result) int {
	count := 0
	for _, item := range result.Items {
		if item.Outcome == pruner.OutcomePlanned {
			count++
		}
	}
	return count
}

func bootstrapReport(result bootstrap.Result) report {
	return report{
		listed:      result.Listed,
		initialized: result.NewlyTracked,
		files: map[string]int{
			"initialized":     result.NewlyTracked,
			"already_tracked": result.AlreadyTracked,
		},
	}
}

// finish publishes the outcome of a run to history, metrics and
// notifications. Reporting uses a context detached from cancellation so an
// interrupted run is still recorded.
func (r *Runner) finish(inv invocation, rep report, runErr error) {
	ctx := context.WithoutCancel(inv.ctx)
	finished := r.now()
	duration := finished.Sub(inv.started)

	r.recordHistory(ctx, inv, rep, finished, runErr)
	r.writeMetrics(inv, rep, finished, duration, runErr)
	r.notify(ctx, inv, rep, duration, runErr)

	if runErr != nil {
		logging.ErrorWithContext(inv.log, "run failed", "run_failed",
			logging.Error(runErr),
			logging.String("error_kind", services.Kind(runErr)),
			logging.Duration("duration", duration),
		)
		return
	}
	inv.log.Info("run completed",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.Bool("dry_run", inv.dryRun),
		logging.Int("failed", rep.failed),
		logging.Duration("duration", duration),
	)
}

func (r *Runner) recordHistory(ctx context.Context, inv invocation, rep report, finished time.Time, runErr error) {
	store, err := history.Open(r.cfg.HistoryPath())
	if err != nil {
		r.warnReporting(inv, "history", err)
		return
	}
	defer store.Close()

	run := history.Run{
		RunID:       inv.id,
		Mode:        inv.mode,
		StartedAt:   inv.started,
		FinishedAt:  finished,
		DryRun:      inv.dryRun,
		Listed:      rep.listed,
		Transferred: rep.transferred,
		Duplicates:  rep.duplicates,
		Failed:      rep.failed,
		Deleted:     rep.deleted,
		Initialized: rep.initialized,
		Bytes:       rep.bytes,
	}
	if runErr != nil {
		run.Error = runErr.Error()
		run.ErrorKind = services.Kind(runErr)
	}
	if _, err := store.Record(ctx, run); err != nil {
		r.warnReporting(inv, "history", err)
		return
	}
	if _, err := store.Trim(ctx, historyKeep); err != nil {
		r.warnReporting(inv, "history", err)
	}
}

func (r *Runner) writeMetrics(inv invocation, rep report, finished time.Time, duration time.Duration, runErr error) {
	path, err := metrics.WriteTextfile(r.cfg.Metrics.TextfileDir, metrics.Snapshot{
		Mode:     inv.mode,
		Finished: finished,
		Success:  runErr == nil && rep.failed == 0,
		Duration: duration,
		Bytes:    rep.bytes,
		Files:    rep.files,
	})
	if err != nil {
		r.warnReporting(inv, "metrics", err)
		return
	}
	if path != "" {
		inv.log.Debug("metrics textfile written", logging.String("path", path))
	}
}

func (r *Runner) notify(ctx context.Context, inv invocation, rep report, duration time.Duration, runErr error) {
	var err error
	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		return
	case runErr != nil:
		err = r.notifier.NotifyRunFailed(ctx, inv.mode, runErr)
	default:
		err = r.notifier.NotifyRunCompleted(ctx, notifications.Summary{
			Mode:        inv.mode,
			DryRun:      inv.dryRun,
			Listed:      rep.listed,
			Transferred: rep.transferred,
			Duplicates:  rep.duplicates,
			Failed:      rep.failed,
			Deleted:     rep.deleted,
			AlreadyGone: rep.alreadyGone,
			Initialized: rep.initialized,
			Bytes:       rep.bytes,
			Duration:    duration,
		})
	}
	if err != nil {
		r.warnReporting(inv, "notifications", err)
	}
}

func (r *Runner) warnReporting(inv invocation, step string, err error) {
	logging.WarnWithContext(inv.log, step+" update failed", "run_report_failed",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldImpact, "run result is unaffected"),
	)
}
