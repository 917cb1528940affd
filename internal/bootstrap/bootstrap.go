package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"mediasync/internal/listing"
	"mediasync/internal/logging"
	"mediasync/internal/remote"
	"mediasync/internal/tracking"
)

// Ledger is the persistence bootstrap needs from the tracking store.
type Ledger interface {
	Load() (tracking.Entries, error)
	Save(tracking.Entries) error
}

// Options control a bootstrap run.
type Options struct {
	Roots  []string
	DryRun bool
}

// Result summarizes a bootstrap run.
type Result struct {
	DryRun         bool          `json:"dry_run"`
	Listed         int           `json:"listed"`
	NewlyTracked   int           `json:"newly_tracked"`
	AlreadyTracked int           `json:"already_tracked"`
	TotalTracked   int           `json:"total_tracked"`
	FailedDirs     int           `json:"failed_dirs"`
	Duration       time.Duration `json:"duration"`
}

// Bootstrapper marks existing remote files as handled.
type Bootstrapper struct {
	client remote.Client
	ledger Ledger
	logger *slog.Logger
}

// New constructs a bootstrapper.
func New(client remote.Client, ledger Ledger, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bootstrapper{
		client: client,
		ledger: ledger,
		logger: logging.NewComponentLogger(logger, "bootstrap"),
	}
}

// Initialize records every untracked remote file under opts.Roots. The ledger
// is saved once, after listing completes.
func (b *Bootstrapper) Initialize(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	result := Result{DryRun: opts.DryRun}

	entries, err := b.ledger.Load()
	if err != nil {
		return result, err
	}

	files, stats := listing.List(ctx, b.client, opts.Roots, b.logger)
	result.Listed = len(files)
	result.FailedDirs = stats.FailedDirs
	if stats.Err != nil {
		result.Duration = time.Since(start)
		return result, stats.Err
	}

	for _, file := range files {
		if entries.Has(file.FullPath) {
			result.AlreadyTracked++
			continue
		}
		result.NewlyTracked++
		seen := file.ModTime
		if seen.IsZero() {
			// Remotes without mtimes age from the bootstrap instead.
			seen = start
		}
		entries[file.FullPath] = tracking.Entry{
			Size:         file.Size,
			DownloadedAt: seen,
			Initialized:  true,
		}
	}
	result.TotalTracked = len(entries)

	if !opts.DryRun && result.NewlyTracked > 0 {
		if err := b.ledger.Save(entries); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
	}

	result.Duration = time.Since(start)
	b.logger.Info("bootstrap complete",
		logging.String(logging.FieldEventType, "bootstrap_completed"),
		logging.Bool("dry_run", opts.DryRun),
		logging.Int("listed", result.Listed),
		logging.Int("newly_tracked", result.NewlyTracked),
		logging.Int("already_tracked", result.AlreadyTracked),
		logging.Int("total_tracked", result.TotalTracked),
		logging.Duration("duration", result.Duration))
	return result, nil
}
