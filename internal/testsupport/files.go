package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns size bytes of a deterministic, position-dependent pattern.
// Resumed downloads that splice at the wrong offset produce different bytes.
func Pattern(size int64) []byte {
	if size < 0 {
		size = 0
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	return buf
}

// WriteFile fills the target path with size bytes of Pattern. A size <= 0
// writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Pattern(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
