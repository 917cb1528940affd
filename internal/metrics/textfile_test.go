package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteTextfile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "textfiles")
	snap := Snapshot{
		Mode:     "sync",
		Finished: time.Unix(1700000000, 0),
		Success:  true,
		Duration: 90 * time.Second,
		Bytes:    2048,
		Files:    map[string]int{"transferred": 3, "failed": 0, "duplicate": 1},
	}

	path, err := WriteTextfile(dir, snap)
	if err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	if path != TextfilePath(dir, "sync") {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`mediasync_last_run_success{mode="sync"} 1`,
		`mediasync_last_run_duration_seconds{mode="sync"} 90`,
		`mediasync_last_run_bytes{mode="sync"} 2048`,
		`mediasync_last_run_files{mode="sync",outcome="transferred"} 3`,
		`mediasync_last_run_files{mode="sync",outcome="duplicate"} 1`,
		`mediasync_last_run_timestamp_seconds{mode="sync"} 1.7e+09`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestWriteTextfileFailureReportsZeroSuccess(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTextfile(dir, Snapshot{Mode: "prune"})
	if err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `mediasync_last_run_success{mode="prune"} 0`) {
		t.Fatalf("expected success gauge 0:\n%s", data)
	}
}

func TestWriteTextfileDisabled(t *testing.T) {
	path, err := WriteTextfile("", Snapshot{Mode: "sync"})
	if err != nil || path != "" {
		t.Fatalf("disabled export returned %q, %v", path, err)
	}
}
