package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"mediasync/internal/fileutil"
	"mediasync/internal/logging"
	"mediasync/internal/services"
)

var (
	// ErrLocked reports that another invocation holds the ledger lock.
	ErrLocked = errors.New("tracking ledger is locked by another mediasync process")
	// ErrCorrupt reports a ledger snapshot that cannot be trusted.
	ErrCorrupt = fmt.Errorf("%w: tracking ledger is corrupt", services.ErrLedger)
)

// Entry records how a remote path was handled.
type Entry struct {
	LocalPath      string    `json:"LocalPath"`
	Size           int64     `json:"Size"`
	DownloadedAt   time.Time `json:"DownloadedAt"`
	ManualTransfer bool      `json:"ManualTransfer,omitempty"`
	Initialized    bool      `json:"Initialized,omitempty"`
}

// Validate checks the per-entry schema.
func (e Entry) Validate() error {
	if e.Size < 0 {
		return fmt.Errorf("negative size %d", e.Size)
	}
	if e.DownloadedAt.IsZero() {
		return errors.New("missing DownloadedAt")
	}
	if e.LocalPath == "" && !e.Initialized {
		return errors.New("missing LocalPath")
	}
	return nil
}

// Entries maps remote paths to ledger entries.
type Entries map[string]Entry

// Has reports whether remotePath is tracked.
func (e Entries) Has(remotePath string) bool {
	_, ok := e[remotePath]
	return ok
}

// Paths returns the tracked remote paths in sorted order.
func (e Entries) Paths() []string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns an independent copy of the map.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Store owns the ledger file and its lock for the lifetime of one run.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Open acquires the ledger lock. The ledger file itself is created lazily by
// the first Save.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tracking", "open", "tracking file path is empty", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "tracking")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrLedger, "tracking", "open", "create ledger directory", err)
	}

	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrLedger, "tracking", "open", "acquire ledger lock", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
	}

	logger.Debug("tracking ledger locked", logging.String("path", path))
	return &Store{path: path, lock: lock, logger: logger}, nil
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the current snapshot. A missing file is an empty ledger.
func (s *Store) Load() (Entries, error) {
	entries, err := ReadSnapshot(s.path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded tracking ledger",
		logging.Int("entry_count", len(entries)),
		logging.String("path", s.path))
	return entries, nil
}

// Save replaces the ledger with entries. The new snapshot is written to a
// temp file in the same directory, synced, then renamed over the old one.
func (s *Store) Save(entries Entries) error {
	if entries == nil {
		entries = Entries{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrLedger, "tracking", "save", "marshal ledger", err)
	}
	data = append(data, '\n')

	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return services.Wrap(services.ErrLedger, "tracking", "save", "write ledger", err)
	}
	return nil
}

// Close releases the ledger lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release ledger lock: %w", err)
	}
	return nil
}

// ReadSnapshot decodes the ledger at path without taking the lock. Readers
// always see a complete snapshot because Save replaces the file by rename.
// A missing file is an empty ledger. A zero-length file is corrupt.
func ReadSnapshot(path string) (Entries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entries{}, nil
		}
		return nil, services.Wrap(services.ErrLedger, "tracking", "load", "read ledger", err)
	}
	return decode(data)
}

func decode(data []byte) (Entries, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty ledger file", ErrCorrupt)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top level is not a JSON object", ErrCorrupt)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var entries Entries
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after ledger object", ErrCorrupt)
	}
	if entries == nil {
		entries = Entries{}
	}
	for key, entry := range entries {
		if key == "" {
			return nil, fmt.Errorf("%w: empty remote path key", ErrCorrupt)
		}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrCorrupt, key, err)
		}
	}
	return entries, nil
}
