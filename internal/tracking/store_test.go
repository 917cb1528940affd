package tracking_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediasync/internal/logging"
	"mediasync/internal/services"
	"mediasync/internal/tracking"
)

func openStore(t *testing.T, path string) *tracking.Store {
	t.Helper()
	store, err := tracking.Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracking.json")
	store := openStore(t, path)

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(entries))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	store := openStore(t, path)

	downloaded := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	want := tracking.Entries{
		"/remote/movie.mkv": {LocalPath: "/lib/Movies/movie.mkv", Size: 42, DownloadedAt: downloaded},
		"/remote/dup.mkv":   {LocalPath: "/lib/Shows/dup.mkv", Size: 7, DownloadedAt: downloaded, ManualTransfer: true},
		"/remote/old.mkv":   {Size: 3, DownloadedAt: downloaded, Initialized: true},
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for key, entry := range want {
		loaded, ok := got[key]
		if !ok {
			t.Fatalf("missing key %q", key)
		}
		if loaded.LocalPath != entry.LocalPath || loaded.Size != entry.Size ||
			!loaded.DownloadedAt.Equal(entry.DownloadedAt) ||
			loaded.ManualTransfer != entry.ManualTransfer || loaded.Initialized != entry.Initialized {
			t.Fatalf("entry %q = %+v, want %+v", key, loaded, entry)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestSaveWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	store := openStore(t, path)

	entries := tracking.Entries{
		"/r/a.mkv": {LocalPath: "/lib/a.mkv", Size: 1, DownloadedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	if err := store.Save(entries); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, fragment := range []string{`"/r/a.mkv"`, `"LocalPath": "/lib/a.mkv"`, `"Size": 1`, `"DownloadedAt": "2024-01-02T03:04:05Z"`} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("ledger missing %s:\n%s", fragment, text)
		}
	}
	if strings.Contains(text, "ManualTransfer") || strings.Contains(text, "Initialized") {
		t.Fatalf("false flags should be omitted:\n%s", text)
	}
}

func TestLoadRejectsCorruptLedger(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"whitespace only", " \n\t\n"},
		{"invalid json", `{"a": `},
		{"array top level", `[]`},
		{"null", `null`},
		{"unknown field", `{"/r/a": {"LocalPath": "/x", "Size": 1, "DownloadedAt": "2024-01-01T00:00:00Z", "Checksum": "abc"}}`},
		{"negative size", `{"/r/a": {"LocalPath": "/x", "Size": -1, "DownloadedAt": "2024-01-01T00:00:00Z"}}`},
		{"missing time", `{"/r/a": {"LocalPath": "/x", "Size": 1}}`},
		{"missing local path", `{"/r/a": {"Size": 1, "DownloadedAt": "2024-01-01T00:00:00Z"}}`},
		{"empty key", `{"": {"LocalPath": "/x", "Size": 1, "DownloadedAt": "2024-01-01T00:00:00Z"}}`},
		{"trailing data", `{} {}`},
		{"wrong type", `{"/r/a": {"LocalPath": "/x", "Size": "big", "DownloadedAt": "2024-01-01T00:00:00Z"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tracking.json")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			store := openStore(t, path)
			_, err := store.Load()
			if !errors.Is(err, tracking.ErrCorrupt) {
				t.Fatalf("Load error = %v, want ErrCorrupt", err)
			}
			if !errors.Is(err, services.ErrLedger) {
				t.Fatalf("corrupt ledger should carry ErrLedger, got %v", err)
			}
		})
	}
}

func TestLoadAcceptsInitializedWithoutLocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	content := `{"/r/a.mkv": {"LocalPath": "", "Size": 5, "DownloadedAt": "2024-01-01T00:00:00Z", "Initialized": true}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := tracking.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !entries["/r/a.mkv"].Initialized {
		t.Fatalf("expected initialized entry, got %+v", entries)
	}
}

func TestOpenRefusesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.json")
	first := openStore(t, path)

	if _, err := tracking.Open(path, logging.NewNop()); !errors.Is(err, tracking.ErrLocked) {
		t.Fatalf("second Open error = %v, want ErrLocked", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := tracking.Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Open after release: %v", err)
	}
	_ = again.Close()
}

func TestEntriesHelpers(t *testing.T) {
	entries := tracking.Entries{
		"/b": {LocalPath: "/x", Size: 1, DownloadedAt: time.Now()},
		"/a": {LocalPath: "/y", Size: 2, DownloadedAt: time.Now()},
	}
	if !entries.Has("/a") || entries.Has("/c") {
		t.Fatalf("Has returned wrong result")
	}
	paths := entries.Paths()
	if len(paths) != 2 || paths[0] != "/a" || paths[1] != "/b" {
		t.Fatalf("Paths = %v", paths)
	}
	clone := entries.Clone()
	delete(clone, "/a")
	if !entries.Has("/a") {
		t.Fatalf("Clone shares storage with the original")
	}
}
