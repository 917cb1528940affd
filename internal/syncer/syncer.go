package syncer

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"mediasync/internal/categorize"
	"mediasync/internal/listing"
	"mediasync/internal/logging"
	"mediasync/internal/remote"
	"mediasync/internal/tracking"
)

// Engine executes sync runs against one remote session.
type Engine struct {
	client   remote.Client
	ledger   Ledger
	transfer Transferer
	dupes    DuplicateFinder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes the engine.
type Option func(*Engine)

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs a sync engine.
func New(client remote.Client, ledger Ledger, transfer Transferer, dupes DuplicateFinder, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		client:   client,
		ledger:   ledger,
		transfer: transfer,
		dupes:    dupes,
		logger:   logging.NewComponentLogger(logger, "syncer"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one sync pass. A returned error means the run could not
// proceed (ledger unreadable, cancelled); per-file failures are reported in
// the Result instead.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	result := Result{DryRun: opts.DryRun}

	entries, err := e.ledger.Load()
	if err != nil {
		return result, err
	}

	files, stats := listing.List(ctx, e.client, opts.Roots, e.logger)
	result.Listed = len(files)
	result.FailedDirs = stats.FailedDirs
	if stats.Err != nil {
		result.Duration = time.Since(start)
		return result, stats.Err
	}

	orderPrimariesFirst(files, opts.Rules)
	cache := categorize.NewFolderCache()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			e.logSummary(result)
			return result, err
		}
		e.process(ctx, file, opts, entries, cache, &result)
	}

	result.Duration = time.Since(start)
	e.logSummary(result)
	return result, nil
}

func (e *Engine) process(ctx context.Context, file listing.File, opts Options, entries tracking.Entries, cache *categorize.FolderCache, result *Result) {
	candidate := categorize.Candidate{Name: file.Name, Size: file.Size, FullPath: file.FullPath}
	companion := opts.Rules.IsCompanion(file.Name)

	if entries.Has(file.FullPath) && !opts.Force {
		result.AlreadyTracked++
		if !companion {
			categorize.Categorize(candidate, opts.Roots, opts.Rules, cache)
		}
		return
	}

	if !opts.Force {
		if localPath, ok := e.dupes.Find(file.Name, file.Size); ok {
			e.recordDuplicate(file, localPath, opts, entries, result)
			if !companion {
				categorize.Categorize(candidate, opts.Roots, opts.Rules, cache)
			}
			return
		}
	}

	dest := categorize.Categorize(candidate, opts.Roots, opts.Rules, cache)
	localPath := filepath.Join(opts.LibraryDir, filepath.FromSlash(dest), filepath.FromSlash(categorize.Subpath(file.FullPath, opts.Roots)))
	item := Item{RemotePath: file.FullPath, LocalPath: localPath, Destination: dest, Size: file.Size}

	if opts.DryRun {
		item.Outcome = OutcomePlanned
		result.Planned++
		result.PlannedBytes += file.Size
		result.Items = append(result.Items, item)
		e.dupes.Add(localPath, file.Size)
		e.logger.Info("would transfer",
			logging.String(logging.FieldEventType, "sync_planned"),
			logging.String("remote_path", file.FullPath),
			logging.String("destination", dest),
			logging.Int64("size_bytes", file.Size))
		return
	}

	outcome, err := e.transfer.Transfer(ctx, file.FullPath, localPath, file.Size)
	item.Attempts = outcome.Attempts
	item.Resumed = outcome.Resumed
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		result.Failed++
		result.Items = append(result.Items, item)
		if ctx.Err() == nil {
			logging.ErrorWithContext(e.logger, "transfer failed", "transfer_failed",
				logging.String("remote_path", file.FullPath),
				logging.String("local_path", localPath),
				logging.Int("attempts", outcome.Attempts),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the file stays untracked and is retried on the next sync"),
				logging.String(logging.FieldImpact, "remaining files continue"),
			)
		}
		return
	}

	entries[file.FullPath] = tracking.Entry{
		LocalPath:    localPath,
		Size:         file.Size,
		DownloadedAt: e.now(),
	}
	e.save(entries, file.FullPath, result)
	e.dupes.Add(localPath, file.Size)
	item.Outcome = OutcomeTransferred
	result.Transferred++
	result.Bytes += file.Size

	if opts.DeleteRemote {
		if err := e.client.Remove(ctx, file.FullPath); err != nil {
			result.DeleteFailures++
			logging.WarnWithContext(e.logger, "remote delete failed", "remote_delete_failed",
				logging.String("remote_path", file.FullPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the retention prune will retry the deletion"),
			)
		} else {
			item.RemoteDeleted = true
			result.RemoteDeleted++
		}
	}
	result.Items = append(result.Items, item)
}

func (e *Engine) recordDuplicate(file listing.File, localPath string, opts Options, entries tracking.Entries, result *Result) {
	result.Duplicates++
	result.Items = append(result.Items, Item{
		RemotePath: file.FullPath,
		LocalPath:  localPath,
		Size:       file.Size,
		Outcome:    OutcomeDuplicate,
	})
	e.logger.Info("local copy already present",
		logging.String(logging.FieldEventType, "sync_duplicate"),
		logging.String("remote_path", file.FullPath),
		logging.String("local_path", localPath),
		logging.Int64("size_bytes", file.Size))
	if opts.DryRun {
		return
	}
	entries[file.FullPath] = tracking.Entry{
		LocalPath:      localPath,
		Size:           file.Size,
		DownloadedAt:   e.now(),
		ManualTransfer: true,
	}
	e.save(entries, file.FullPath, result)
}

func (e *Engine) save(entries tracking.Entries, remotePath string, result *Result) {
	if err := e.ledger.Save(entries); err != nil {
		result.LedgerErrors++
		logging.ErrorWithContext(e.logger, "ledger save failed", "ledger_save_failed",
			logging.String("remote_path", remotePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions for sync.tracking_file"),
			logging.String(logging.FieldImpact, "completed transfers may be repeated on the next run"),
		)
	}
}

func (e *Engine) logSummary(result Result) {
	e.logger.Info("sync run complete",
		logging.String(logging.FieldEventType, "sync_completed"),
		logging.Bool("dry_run", result.DryRun),
		logging.Int("listed", result.Listed),
		logging.Int("already_tracked", result.AlreadyTracked),
		logging.Int("transferred", result.Transferred),
		logging.Int("duplicates", result.Duplicates),
		logging.Int("planned", result.Planned),
		logging.Int("failed", result.Failed),
		logging.Int("ledger_errors", result.LedgerErrors),
		logging.Int64("total_bytes", result.Bytes),
		logging.Duration("duration", result.Duration))
}

// orderPrimariesFirst moves companion files behind every primary file while
// keeping listing order within each group.
func orderPrimariesFirst(files []listing.File, rules categorize.Rules) {
	sort.SliceStable(files, func(i, j int) bool {
		return !rules.IsCompanion(files[i].Name) && rules.IsCompanion(files[j].Name)
	})
}
