package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mediasync/internal/config"
	"mediasync/internal/logging"
	"mediasync/internal/metrics"
	"mediasync/internal/notifications"
	"mediasync/internal/remote"
	"mediasync/internal/services"
	"mediasync/internal/testsupport"
	"mediasync/internal/tracking"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu        sync.Mutex
	completed []notifications.Summary
	failed    []string
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, summary notifications.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, summary)
	return nil
}

func (n *recordingNotifier) NotifyRunFailed(_ context.Context, mode string, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, mode)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type fixture struct {
	cfg      *config.Config
	fake     *testsupport.FakeRemote
	notifier *recordingNotifier
	dials    int
	dialErr  error
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithMovieMinSizeGB(1.0 / (1 << 20))}, opts...)
	return &fixture{
		cfg:      testsupport.NewConfig(t, opts...),
		fake:     testsupport.NewFakeRemote(),
		notifier: &recordingNotifier{},
	}
}

func (f *fixture) runner() *Runner {
	dial := func(context.Context, *config.Config, *slog.Logger) (remote.Client, error) {
		f.dials++
		if f.dialErr != nil {
			return nil, f.dialErr
		}
		return f.fake, nil
	}
	r := New(f.cfg, logging.NewNop(),
		WithDialer(dial),
		WithNotifier(f.notifier),
		WithSleeper(func(time.Duration) {}),
		WithClock(func() time.Time { return fixedNow }),
	)
	r.newID = func() string { return "run-1" }
	return r
}

func requireLedgerUnlocked(t *testing.T, cfg *config.Config) {
	t.Helper()
	store, err := tracking.Open(cfg.Sync.TrackingFile, logging.NewNop())
	if err != nil {
		t.Fatalf("ledger should be unlocked after the run: %v", err)
	}
	_ = store.Close()
}

func TestSyncReportsToHistoryMetricsAndNotifications(t *testing.T) {
	f := newFixture(t, testsupport.WithMetricsDir())
	f.fake.AddSizedFile("/remote/F/movie.mkv", 2048, fixedNow)
	f.fake.AddSizedFile("/remote/Show.S01E02.mkv", 4096, fixedNow)

	result, err := f.runner().Sync(context.Background(), SyncRequest{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Transferred != 2 || result.Bytes != 2048+4096 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Library.BaseDir, "Movies", "F", "movie.mkv")); err != nil {
		t.Fatalf("movie not delivered: %v", err)
	}
	if !f.fake.Closed() {
		t.Fatal("remote session should be closed")
	}
	requireLedgerUnlocked(t, f.cfg)

	runs, err := testsupport.MustOpenHistory(t, f.cfg).Recent(context.Background(), 5, ModeSync)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("history has %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.RunID != "run-1" || run.Transferred != 2 || run.Bytes != 6144 || !run.Succeeded() {
		t.Fatalf("unexpected history row %+v", run)
	}

	data, err := os.ReadFile(metrics.TextfilePath(f.cfg.Metrics.TextfileDir, ModeSync))
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), `mediasync_last_run_files{mode="sync",outcome="transferred"} 2`) {
		t.Fatalf("metrics missing transferred count:\n%s", data)
	}

	if len(f.notifier.completed) != 1 || f.notifier.completed[0].Transferred != 2 {
		t.Fatalf("unexpected notifications %+v", f.notifier.completed)
	}
}

func TestSyncConnectionFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	f.dialErr = services.Wrap(services.ErrConnection, "remote", "dial", "connect", errors.New("refused"))

	_, err := f.runner().Sync(context.Background(), SyncRequest{})
	if !errors.Is(err, services.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if _, statErr := os.Stat(f.cfg.Sync.TrackingFile); !os.IsNotExist(statErr) {
		t.Fatalf("ledger should not be written, stat err = %v", statErr)
	}
	requireLedgerUnlocked(t, f.cfg)

	runs, err := testsupport.MustOpenHistory(t, f.cfg).Recent(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].ErrorKind != "connection" || runs[0].Succeeded() {
		t.Fatalf("unexpected history %+v", runs)
	}
	if len(f.notifier.failed) != 1 || f.notifier.failed[0] != ModeSync {
		t.Fatalf("expected failure notification, got %+v", f.notifier.failed)
	}
}

func TestSyncPreflightFailureSkipsDial(t *testing.T) {
	f := newFixture(t)
	f.cfg.Remote.SFTP.PrivateKeyPath = filepath.Join(t.TempDir(), "missing_key")

	_, err := f.runner().Sync(context.Background(), SyncRequest{})
	if !errors.Is(err, services.ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}
	if f.dials != 0 {
		t.Fatalf("dialer called %d times", f.dials)
	}
}

func TestSyncRefusesLockedLedger(t *testing.T) {
	f := newFixture(t)
	holder, err := tracking.Open(f.cfg.Sync.TrackingFile, logging.NewNop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer holder.Close()

	_, err = f.runner().Sync(context.Background(), SyncRequest{})
	if !errors.Is(err, tracking.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if f.dials != 0 {
		t.Fatalf("dialer called %d times", f.dials)
	}
}

func TestBootstrapThenPrune(t *testing.T) {
	f := newFixture(t)
	f.cfg.Prune.DaysOld = 7
	f.fake.AddSizedFile("/remote/old.mkv", 100, fixedNow.AddDate(0, 0, -10))
	f.fake.AddSizedFile("/remote/new.mkv", 100, fixedNow.AddDate(0, 0, -1))

	r := f.runner()
	boot, err := r.Bootstrap(context.Background(), BootstrapRequest{})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if boot.NewlyTracked != 2 {
		t.Fatalf("bootstrap tracked %d, want 2", boot.NewlyTracked)
	}

	pruned, err := r.Prune(context.Background(), PruneRequest{})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned.Deleted != 1 || f.fake.Has("/remote/old.mkv") || !f.fake.Has("/remote/new.mkv") {
		t.Fatalf("unexpected prune result %+v", pruned)
	}

	latest, err := testsupport.MustOpenHistory(t, f.cfg).Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest[ModeBootstrap].Initialized != 2 || latest[ModePrune].Deleted != 1 {
		t.Fatalf("unexpected latest runs %+v", latest)
	}
	if len(f.notifier.completed) != 2 {
		t.Fatalf("expected 2 completion notifications, got %d", len(f.notifier.completed))
	}
}

func TestReportingFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.cfg.Metrics.TextfileDir = blocker
	f.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)

	result, err := f.runner().Sync(context.Background(), SyncRequest{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Transferred != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCancelledRunSkipsNotification(t *testing.T) {
	f := newFixture(t)
	f.fake.AddSizedFile("/remote/a.mkv", 2048, fixedNow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner().Sync(ctx, SyncRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.notifier.failed) != 0 || len(f.notifier.completed) != 0 {
		t.Fatalf("cancelled runs should not notify: %+v", f.notifier)
	}
	runs, err := testsupport.MustOpenHistory(t, f.cfg).Recent(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Error == "" {
		t.Fatalf("cancelled run should still be recorded, got %+v", runs)
	}
}
