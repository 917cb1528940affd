package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediasync/internal/bootstrap"
	"mediasync/internal/history"
	"mediasync/internal/pruner"
	"mediasync/internal/tracking"
)

func TestBootstrapThenPruneCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	now := time.Now()
	env.fake.AddSizedFile("/remote/old.mkv", 100, now.AddDate(0, 0, -30))
	env.fake.AddSizedFile("/remote/recent.mkv", 100, now.AddDate(0, 0, -1))

	var boot bootstrap.Result
	runCLIJSON(t, env, &boot, "bootstrap")
	if boot.NewlyTracked != 2 || boot.TotalTracked != 2 {
		t.Fatalf("unexpected bootstrap result %+v", boot)
	}

	var rows []ledgerRow
	runCLIJSON(t, env, &rows, "ledger", "list")
	if len(rows) != 2 || !rows[0].Initialized || rows[0].RemotePath != "/remote/old.mkv" {
		t.Fatalf("unexpected ledger rows %+v", rows)
	}

	var dry pruner.Result
	runCLIJSON(t, env, &dry, "prune", "--days", "7", "--dry-run")
	if dry.Eligible != 1 || !env.fake.Has("/remote/old.mkv") {
		t.Fatalf("unexpected dry prune %+v", dry)
	}

	var pruned pruner.Result
	runCLIJSON(t, env, &pruned, "prune", "--days", "7")
	if pruned.Deleted != 1 || env.fake.Has("/remote/old.mkv") || !env.fake.Has("/remote/recent.mkv") {
		t.Fatalf("unexpected prune %+v", pruned)
	}

	var runs []history.Run
	runCLIJSON(t, env, &runs, "history")
	if len(runs) != 3 {
		t.Fatalf("history has %d runs, want 3", len(runs))
	}
	var prunes []history.Run
	runCLIJSON(t, env, &prunes, "history", "--mode", "prune", "--limit", "1")
	if len(prunes) != 1 || prunes[0].Mode != "prune" || prunes[0].Deleted != 1 {
		t.Fatalf("unexpected prune history %+v", prunes)
	}
}

func TestPruneCommandRejectsNegativeDays(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "prune", "--days", "-1"); err == nil {
		t.Fatal("expected error for negative days")
	}
}

func TestLedgerListRejectsCorruptLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.cfg.Sync.TrackingFile, []byte(`{"a": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, env, "ledger", "list")
	if err == nil || !strings.Contains(err.Error(), "corrupt") {
		t.Fatalf("expected corrupt ledger error, got %v", err)
	}
}

func TestLedgerBackup(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.AddSizedFile("/remote/a.mkv", 2048, remoteTime)
	if _, _, err := runCLI(t, env, "sync", "--no-progress"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	dest := t.TempDir()
	out, _, err := runCLI(t, env, "ledger", "backup", dest)
	if err != nil {
		t.Fatalf("ledger backup: %v", err)
	}
	requireContains(t, out, "Backed up")

	matches, err := filepath.Glob(filepath.Join(dest, "tracking-*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one backup file, got %v (err %v)", matches, err)
	}
	entries, err := tracking.ReadSnapshot(matches[0])
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !entries.Has("/remote/a.mkv") {
		t.Fatalf("backup missing entry: %v", entries.Paths())
	}
}

func TestLedgerBackupWithoutLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "ledger", "backup", t.TempDir()); err == nil {
		t.Fatal("expected error when no ledger exists")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.AddSizedFile("/remote/a.mkv", 2048, remoteTime)
	if _, _, err := runCLI(t, env, "sync", "--no-progress"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Readiness ==")
	requireContains(t, out, "Remote transport")
	requireContains(t, out, "Tracked files")
	requireContains(t, out, "1 (2.0 KiB)")
	requireContains(t, out, "never run")
}

func TestConfigInitValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, redacted)
	if strings.Contains(out, "password = 'test'") {
		t.Fatalf("config show leaked the password:\n%s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestHistoryRejectsUnknownMode(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "history", "--mode", "rip"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestLedgerRowJSONShape(t *testing.T) {
	row := ledgerRow{RemotePath: "/remote/a.mkv", Entry: tracking.Entry{LocalPath: "/lib/a.mkv", Size: 1, DownloadedAt: remoteTime}}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"RemotePath"`, `"LocalPath"`, `"Size"`, `"DownloadedAt"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("ledger row JSON %s missing %s", data, key)
		}
	}
}
