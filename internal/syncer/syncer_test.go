package syncer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediasync/internal/categorize"
	"mediasync/internal/config"
	"mediasync/internal/localdup"
	"mediasync/internal/logging"
	"mediasync/internal/services"
	"mediasync/internal/syncer"
	"mediasync/internal/testsupport"
	"mediasync/internal/tracking"
	"mediasync/internal/transfer"
)

// 1 KiB threshold keeps movie fixtures small.
const movieThresholdGB = 1.0 / (1 << 20)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	cfg    *config.Config
	fake   *testsupport.FakeRemote
	ledger syncer.Ledger
	store  *tracking.Store
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithMovieMinSizeGB(movieThresholdGB)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store, err := tracking.Open(cfg.Sync.TrackingFile, logging.NewNop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &harness{t: t, cfg: cfg, fake: testsupport.NewFakeRemote(), ledger: store, store: store}
}

func (h *harness) engine(transferer syncer.Transferer) *syncer.Engine {
	if transferer == nil {
		transferer = transfer.New(h.fake, logging.NewNop(), transfer.WithSleeper(func(time.Duration) {}))
	}
	detector := localdup.New(h.cfg.LibraryRoots(), logging.NewNop())
	return syncer.New(h.fake, h.ledger, transferer, detector, logging.NewNop(), syncer.WithClock(func() time.Time { return fixedNow }))
}

func (h *harness) options() syncer.Options {
	return syncer.Options{
		Roots:        h.cfg.Remote.Roots,
		LibraryDir:   h.cfg.Library.BaseDir,
		Rules:        categorize.RulesFromConfig(h.cfg),
		DeleteRemote: h.cfg.Sync.DeleteRemoteAfterTransfer,
	}
}

func (h *harness) run(mutate func(*syncer.Options)) syncer.Result {
	h.t.Helper()
	opts := h.options()
	if mutate != nil {
		mutate(&opts)
	}
	result, err := h.engine(nil).Run(context.Background(), opts)
	if err != nil {
		h.t.Fatalf("Run: %v", err)
	}
	return result
}

func (h *harness) entries() tracking.Entries {
	h.t.Helper()
	entries, err := tracking.ReadSnapshot(h.cfg.Sync.TrackingFile)
	if err != nil {
		h.t.Fatalf("read ledger: %v", err)
	}
	return entries
}

func (h *harness) lib(parts ...string) string {
	return filepath.Join(append([]string{h.cfg.Library.BaseDir}, parts...)...)
}

func requireFile(t *testing.T, path string, size int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	if info.Size() != size {
		t.Fatalf("%s size = %d, want %d", path, info.Size(), size)
	}
}

func TestRunTransfersIntoCategories(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/F/movie.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/F/movie.srt", 10, fixedNow)
	h.fake.AddSizedFile("/remote/Show.S01E02.mkv", 4096, fixedNow)
	h.fake.AddSizedFile("/remote/Album/01.flac", 50, fixedNow)
	h.fake.AddSizedFile("/remote/F/extras/clip.mkv", 2048, fixedNow)

	result := h.run(nil)
	if result.Listed != 5 || result.Transferred != 5 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	requireFile(t, h.lib("Movies", "F", "movie.mkv"), 2048)
	requireFile(t, h.lib("Movies", "F", "movie.srt"), 10)
	requireFile(t, h.lib("Movies", "F", "extras", "clip.mkv"), 2048)
	requireFile(t, h.lib("Shows", "Show.S01E02.mkv"), 4096)
	requireFile(t, h.lib("Music", "Album", "01.flac"), 50)

	entries := h.entries()
	if len(entries) != 5 {
		t.Fatalf("ledger has %d entries, want 5", len(entries))
	}
	got := entries["/remote/F/movie.mkv"]
	if got.LocalPath != h.lib("Movies", "F", "movie.mkv") || got.Size != 2048 || !got.DownloadedAt.Equal(fixedNow) || got.ManualTransfer {
		t.Fatalf("unexpected ledger entry %+v", got)
	}
	if result.Bytes != 2048+10+4096+50+2048 {
		t.Fatalf("Bytes = %d", result.Bytes)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/b/c.epub", 30, fixedNow)

	first := h.run(nil)
	opens := h.fake.OpenCount()
	second := h.run(nil)

	if first.Transferred != 2 {
		t.Fatalf("first run transferred %d", first.Transferred)
	}
	if second.Transferred != 0 || second.AlreadyTracked != 2 || second.Duplicates != 0 {
		t.Fatalf("second run should be a no-op, got %+v", second)
	}
	if h.fake.OpenCount() != opens {
		t.Fatalf("second run opened remote files")
	}
}

func TestCompanionListedBeforePrimaryFollowsIt(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/F/a.srt", 10, fixedNow)
	h.fake.AddSizedFile("/remote/F/b.mkv", 2048, fixedNow)

	h.run(nil)
	requireFile(t, h.lib("Movies", "F", "a.srt"), 10)
	requireFile(t, h.lib("Movies", "F", "b.mkv"), 2048)
}

func TestTrackedPrimaryStillPlacesNewCompanion(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/F/movie.mkv", 2048, fixedNow)
	h.run(nil)

	h.fake.AddSizedFile("/remote/F/movie.en.srt", 7, fixedNow)
	result := h.run(nil)
	if result.Transferred != 1 || result.AlreadyTracked != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	requireFile(t, h.lib("Movies", "F", "movie.en.srt"), 7)
}

func TestLocalDuplicateShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/F/movie.mkv", 2048, fixedNow)
	existing := h.lib("Downloads", "manual", "movie.mkv")
	testsupport.WriteFile(t, existing, 2048)

	result := h.run(nil)
	if result.Duplicates != 1 || result.Transferred != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.fake.OpenCount() != 0 {
		t.Fatalf("duplicate must not be transferred")
	}
	entry := h.entries()["/remote/F/movie.mkv"]
	if !entry.ManualTransfer || entry.LocalPath != existing || entry.Size != 2048 || !entry.DownloadedAt.Equal(fixedNow) {
		t.Fatalf("unexpected duplicate entry %+v", entry)
	}
}

func TestSameNameDifferentSizeIsNotDuplicate(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/movie.mkv", 2048, fixedNow)
	testsupport.WriteFile(t, h.lib("Movies", "movie.mkv.old", "movie.mkv"), 2000)

	result := h.run(nil)
	if result.Duplicates != 0 || result.Transferred != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestForceRetransfersTrackedAndDuplicates(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.run(nil)
	if h.fake.OpenCount() != 1 {
		t.Fatalf("expected one open after first run")
	}

	result := h.run(func(o *syncer.Options) { o.Force = true })
	if result.Transferred != 1 || result.AlreadyTracked != 0 || result.Duplicates != 0 {
		t.Fatalf("forced run should re-transfer, got %+v", result)
	}
	if h.fake.OpenCount() != 2 {
		t.Fatalf("expected a second open, got %d", h.fake.OpenCount())
	}
	if h.entries()["/remote/a.mkv"].ManualTransfer {
		t.Fatalf("forced transfer must record a real transfer")
	}
}

func TestFailureIsolation(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/b.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/c.mkv", 2048, fixedNow)
	h.fake.FailOpen("/remote/a.mkv", -1, errors.New("permission denied"))

	result := h.run(nil)
	if result.Failed != 1 || result.Transferred != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(h.fake.OpenOffsets("/remote/a.mkv")) != 3 {
		t.Fatalf("failing file should be attempted three times")
	}
	entries := h.entries()
	if entries.Has("/remote/a.mkv") {
		t.Fatalf("failed file must stay untracked")
	}
	if !entries.Has("/remote/b.mkv") || !entries.Has("/remote/c.mkv") {
		t.Fatalf("later files should be tracked: %v", entries.Paths())
	}
	if !result.HasFailures() {
		t.Fatalf("HasFailures should report the failed item")
	}
}

func TestDryRunHasNoSideEffects(t *testing.T) {
	h := newHarness(t, testsupport.WithDeleteRemote(true))
	h.fake.AddSizedFile("/remote/F/movie.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/F/movie.srt", 10, fixedNow)
	h.fake.AddSizedFile("/remote/dup.mkv", 3000, fixedNow)
	testsupport.WriteFile(t, h.lib("Movies", "dup.mkv"), 3000)

	dry := h.run(func(o *syncer.Options) { o.DryRun = true })
	if dry.Planned != 2 || dry.Duplicates != 1 || dry.Transferred != 0 || dry.PlannedBytes != 2058 {
		t.Fatalf("unexpected dry-run result %+v", dry)
	}
	if h.fake.OpenCount() != 0 || len(h.fake.Removed()) != 0 {
		t.Fatalf("dry run touched the remote")
	}
	if _, err := os.Stat(h.cfg.Sync.TrackingFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run wrote the ledger: %v", err)
	}
	if _, err := os.Stat(h.lib("Movies", "F")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run created library folders: %v", err)
	}
	for _, item := range dry.Items {
		if item.RemotePath == "/remote/F/movie.srt" && item.Destination != "Movies/F" {
			t.Fatalf("dry run companion destination = %q", item.Destination)
		}
	}

	live := h.run(nil)
	if live.Transferred != dry.Planned || live.Duplicates != dry.Duplicates {
		t.Fatalf("live run diverged from plan: dry %+v live %+v", dry, live)
	}
}

func TestDryRunCountsMatchLiveRunForRepeatedNames(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/A/clip.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/B/clip.mkv", 2048, fixedNow)

	dry := h.run(func(o *syncer.Options) { o.DryRun = true })
	if dry.Planned != 1 || dry.Duplicates != 1 {
		t.Fatalf("unexpected dry-run result %+v", dry)
	}

	live := h.run(nil)
	if live.Transferred != dry.Planned || live.Duplicates != dry.Duplicates {
		t.Fatalf("live run diverged from plan: dry %+v live %+v", dry, live)
	}
}

func TestDeleteRemoteAfterTransfer(t *testing.T) {
	h := newHarness(t, testsupport.WithDeleteRemote(true))
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/b.mkv", 2048, fixedNow)
	h.fake.FailRemove("/remote/b.mkv", errors.New("read-only"))

	result := h.run(nil)
	if result.RemoteDeleted != 1 || result.DeleteFailures != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.fake.Has("/remote/a.mkv") {
		t.Fatalf("remote copy should be deleted")
	}
	if !h.entries().Has("/remote/b.mkv") {
		t.Fatalf("delete failure must not untrack a completed transfer")
	}
}

type flakyLedger struct {
	entries tracking.Entries
	saves   int
	fail    bool
	loadErr error
}

func (l *flakyLedger) Load() (tracking.Entries, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	if l.entries == nil {
		l.entries = tracking.Entries{}
	}
	return l.entries.Clone(), nil
}

func (l *flakyLedger) Save(entries tracking.Entries) error {
	l.saves++
	if l.fail {
		return services.Wrap(services.ErrLedger, "test", "save", "disk full", nil)
	}
	l.entries = entries.Clone()
	return nil
}

func TestLedgerSaveFailureIsCountedAndRunContinues(t *testing.T) {
	h := newHarness(t)
	ledger := &flakyLedger{fail: true}
	h.ledger = ledger
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/b.mkv", 2048, fixedNow)

	result := h.run(nil)
	if result.Transferred != 2 || result.LedgerErrors != 2 || ledger.saves != 2 {
		t.Fatalf("unexpected result %+v saves=%d", result, ledger.saves)
	}
	if !result.HasFailures() {
		t.Fatalf("ledger errors must surface as failures")
	}
}

func TestLedgerSavedAfterEveryItem(t *testing.T) {
	h := newHarness(t)
	ledger := &flakyLedger{}
	h.ledger = ledger
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/b.mkv", 2048, fixedNow)
	testsupport.WriteFile(t, h.lib("Shows", "b.mkv"), 2048)

	h.run(nil)
	if ledger.saves != 2 || len(ledger.entries) != 2 {
		t.Fatalf("saves=%d entries=%d, want 2/2", ledger.saves, len(ledger.entries))
	}
}

func TestLedgerLoadFailureAbortsRun(t *testing.T) {
	h := newHarness(t)
	h.ledger = &flakyLedger{loadErr: tracking.ErrCorrupt}
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)

	_, err := h.engine(nil).Run(context.Background(), h.options())
	if !errors.Is(err, services.ErrLedger) {
		t.Fatalf("error = %v, want ErrLedger", err)
	}
	if h.fake.OpenCount() != 0 {
		t.Fatalf("no transfer may happen without a ledger")
	}
}

type cancellingTransferer struct {
	inner  syncer.Transferer
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingTransferer) Transfer(ctx context.Context, remotePath, localPath string, size int64) (transfer.Outcome, error) {
	c.calls++
	outcome, err := c.inner.Transfer(ctx, remotePath, localPath, size)
	c.cancel()
	return outcome, err
}

func TestCancellationStopsBetweenFiles(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/b.mkv", 2048, fixedNow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transferer := &cancellingTransferer{
		inner:  transfer.New(h.fake, logging.NewNop()),
		cancel: cancel,
	}
	result, err := h.engine(transferer).Run(ctx, h.options())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if transferer.calls != 1 || result.Transferred != 1 {
		t.Fatalf("calls=%d result=%+v", transferer.calls, result)
	}
	entries := h.entries()
	if !entries.Has("/remote/a.mkv") || entries.Has("/remote/b.mkv") {
		t.Fatalf("ledger should hold exactly the completed item: %v", entries.Paths())
	}
}

func TestListingFailureSkipsSubtree(t *testing.T) {
	h := newHarness(t)
	h.fake.AddSizedFile("/remote/ok/a.mkv", 2048, fixedNow)
	h.fake.AddSizedFile("/remote/bad/b.mkv", 2048, fixedNow)
	h.fake.FailListing("/remote/bad", errors.New("permission denied"))

	result := h.run(nil)
	if result.FailedDirs != 1 || result.Transferred != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}
