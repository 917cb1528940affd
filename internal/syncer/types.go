package syncer

import (
	"context"
	"time"

	"mediasync/internal/categorize"
	"mediasync/internal/tracking"
	"mediasync/internal/transfer"
)

// Ledger is the persistence the sync engine needs from the tracking store.
type Ledger interface {
	Load() (tracking.Entries, error)
	Save(tracking.Entries) error
}

// Transferer delivers one remote file to a local path.
type Transferer interface {
	Transfer(ctx context.Context, remotePath, localPath string, size int64) (transfer.Outcome, error)
}

// DuplicateFinder locates existing local copies by name and size.
type DuplicateFinder interface {
	Find(name string, size int64) (string, bool)
	Add(path string, size int64)
}

// Options control a single sync run.
type Options struct {
	Roots        []string
	LibraryDir   string
	Rules        categorize.Rules
	DeleteRemote bool
	DryRun       bool
	// Force re-transfers tracked paths and bypasses local duplicate checks.
	Force bool
}

// Outcome classifies what happened to a candidate.
type Outcome string

const (
	OutcomeTransferred Outcome = "transferred"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeFailed      Outcome = "failed"
	OutcomePlanned     Outcome = "planned"
)

// Item records the handling of one untracked (or forced) remote file.
type Item struct {
	RemotePath    string  `json:"remote_path"`
	LocalPath     string  `json:"local_path,omitempty"`
	Destination   string  `json:"destination,omitempty"`
	Size          int64   `json:"size"`
	Outcome       Outcome `json:"outcome"`
	Attempts      int     `json:"attempts,omitempty"`
	Resumed       bool    `json:"resumed,omitempty"`
	RemoteDeleted bool    `json:"remote_deleted,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Result summarizes a sync run.
type Result struct {
	DryRun         bool          `json:"dry_run"`
	Listed         int           `json:"listed"`
	AlreadyTracked int           `json:"already_tracked"`
	Transferred    int           `json:"transferred"`
	Duplicates     int           `json:"duplicates"`
	Planned        int           `json:"planned"`
	Failed         int           `json:"failed"`
	RemoteDeleted  int           `json:"remote_deleted"`
	DeleteFailures int           `json:"delete_failures"`
	LedgerErrors   int           `json:"ledger_errors"`
	FailedDirs     int           `json:"failed_dirs"`
	Bytes          int64         `json:"bytes"`
	PlannedBytes   int64         `json:"planned_bytes"`
	Duration       time.Duration `json:"duration"`
	Items          []Item        `json:"items"`
}

// HasFailures reports whether any item or ledger write failed.
func (r Result) HasFailures() bool {
	return r.Failed > 0 || r.LedgerErrors > 0 || r.DeleteFailures > 0
}
