package testsupport

import (
	"testing"

	"mediasync/internal/config"
	"mediasync/internal/history"
)

// MustOpenHistory opens the run history database for the given config and
// registers cleanup with the test.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
