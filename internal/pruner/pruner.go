package pruner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediasync/internal/logging"
	"mediasync/internal/remote"
	"mediasync/internal/services"
	"mediasync/internal/tracking"
)

// Ledger is the persistence the pruner needs from the tracking store.
type Ledger interface {
	Load() (tracking.Entries, error)
	Save(tracking.Entries) error
}

// Options control a prune run.
type Options struct {
	DaysOld int
	DryRun  bool
}

// Outcome classifies what happened to an eligible entry.
type Outcome string

const (
	OutcomeDeleted     Outcome = "deleted"
	OutcomeAlreadyGone Outcome = "already_gone"
	OutcomeFailed      Outcome = "failed"
	OutcomePlanned     Outcome = "planned"
)

// Item records one eligible ledger entry.
type Item struct {
	RemotePath   string    `json:"remote_path"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
}

// Result summarizes a prune run.
type Result struct {
	DryRun       bool          `json:"dry_run"`
	DaysOld      int           `json:"days_old"`
	Cutoff       time.Time     `json:"cutoff"`
	Tracked      int           `json:"tracked"`
	Eligible     int           `json:"eligible"`
	Deleted      int           `json:"deleted"`
	AlreadyGone  int           `json:"already_gone"`
	Failed       int           `json:"failed"`
	LedgerErrors int           `json:"ledger_errors"`
	Bytes        int64         `json:"bytes"`
	Duration     time.Duration `json:"duration"`
	Items        []Item        `json:"items"`
}

// HasFailures reports whether any deletion or ledger write failed.
func (r Result) HasFailures() bool {
	return r.Failed > 0 || r.LedgerErrors > 0
}

// Pruner removes aged remote files.
type Pruner struct {
	client remote.Client
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes the pruner.
type Option func(*Pruner)

// WithClock overrides the time source used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(p *Pruner) {
		if now != nil {
			p.now = now
		}
	}
}

// New constructs a pruner.
func New(client remote.Client, ledger Ledger, logger *slog.Logger, opts ...Option) *Pruner {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pruner{
		client: client,
		ledger: ledger,
		logger: logging.NewComponentLogger(logger, "pruner"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cutoff returns the instant before which entries are eligible.
func Cutoff(now time.Time, daysOld int) time.Time {
	return now.Add(-time.Duration(daysOld) * 24 * time.Hour)
}

// Eligible reports whether an entry downloaded at downloadedAt is older than
// cutoff. An entry exactly at the cutoff is kept.
func Eligible(downloadedAt, cutoff time.Time) bool {
	return downloadedAt.Before(cutoff)
}

// Prune deletes remote files tracked for longer than opts.DaysOld days.
func (p *Pruner) Prune(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	result := Result{DryRun: opts.DryRun, DaysOld: opts.DaysOld}
	if opts.DaysOld < 0 {
		return result, services.Wrap(services.ErrConfiguration, "pruner", "validate", fmt.Sprintf("days_old must be >= 0 (got %d)", opts.DaysOld), nil)
	}

	entries, err := p.ledger.Load()
	if err != nil {
		return result, err
	}
	result.Tracked = len(entries)
	result.Cutoff = Cutoff(p.now(), opts.DaysOld)

	for _, remotePath := range entries.Paths() {
		entry := entries[remotePath]
		if !Eligible(entry.DownloadedAt, result.Cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		result.Eligible++
		item := Item{RemotePath: remotePath, Size: entry.Size, DownloadedAt: entry.DownloadedAt}

		if opts.DryRun {
			item.Outcome = OutcomePlanned
			result.Items = append(result.Items, item)
			continue
		}

		item.Outcome, err = p.pruneOne(ctx, remotePath)
		switch item.Outcome {
		case OutcomeDeleted:
			result.Deleted++
			result.Bytes += entry.Size
		case OutcomeAlreadyGone:
			result.AlreadyGone++
		default:
			result.Failed++
			item.Error = err.Error()
			logging.WarnWithContext(p.logger, "remote delete failed", "prune_delete_failed",
				logging.String("remote_path", remotePath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check remote permissions; the entry is retried on the next prune"),
			)
		}
		result.Items = append(result.Items, item)

		if item.Outcome == OutcomeFailed {
			continue
		}
		delete(entries, remotePath)
		if err := p.ledger.Save(entries); err != nil {
			result.LedgerErrors++
			logging.ErrorWithContext(p.logger, "ledger save failed", "ledger_save_failed",
				logging.String("remote_path", remotePath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions for sync.tracking_file"),
			)
		}
	}

	result.Duration = time.Since(start)
	p.logger.Info("prune run complete",
		logging.String(logging.FieldEventType, "prune_completed"),
		logging.Bool("dry_run", opts.DryRun),
		logging.Int("days_old", opts.DaysOld),
		logging.Int("tracked", result.Tracked),
		logging.Int("eligible", result.Eligible),
		logging.Int("deleted", result.Deleted),
		logging.Int("already_gone", result.AlreadyGone),
		logging.Int("failed", result.Failed),
		logging.Int64("freed_bytes", result.Bytes),
		logging.Duration("duration", result.Duration))
	return result, nil
}

func (p *Pruner) pruneOne(ctx context.Context, remotePath string) (Outcome, error) {
	if _, err := p.client.Stat(ctx, remotePath); err != nil {
		if errors.Is(err, remote.ErrNotExist) {
			p.logger.Debug("remote file already gone", logging.String("remote_path", remotePath))
			return OutcomeAlreadyGone, nil
		}
		return OutcomeFailed, fmt.Errorf("stat: %w", err)
	}
	if err := p.client.Remove(ctx, remotePath); err != nil {
		if errors.Is(err, remote.ErrNotExist) {
			return OutcomeAlreadyGone, nil
		}
		return OutcomeFailed, fmt.Errorf("remove: %w", err)
	}
	p.logger.Info("remote file pruned",
		logging.String(logging.FieldEventType, "prune_deleted"),
		logging.String("remote_path", remotePath))
	return OutcomeDeleted, nil
}
