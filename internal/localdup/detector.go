package localdup

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"mediasync/internal/logging"
)

// PartialSuffix marks in-progress downloads, which never count as copies.
const PartialSuffix = ".partial"

type key struct {
	name string
	size int64
}

// Detector indexes the categorized library roots by file name and size.
// The index is built by a single walk on the first lookup.
type Detector struct {
	roots  []string
	logger *slog.Logger
	index  map[key][]string
	built  bool
	files  int
}

// New returns a detector over roots. Roots are searched in the given order.
func New(roots []string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		roots:  append([]string(nil), roots...),
		logger: logging.NewComponentLogger(logger, "localdup"),
	}
}

// Find returns the first local file named name with exactly size bytes.
func (d *Detector) Find(name string, size int64) (string, bool) {
	d.ensureIndex()
	matches := d.index[key{name: normalizeName(name), size: size}]
	if len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// Add records a file written during the current run so later lookups see it
// without another walk.
func (d *Detector) Add(path string, size int64) {
	if !d.built {
		return
	}
	d.insert(path, size)
}

// Indexed returns the number of files in the index.
func (d *Detector) Indexed() int {
	d.ensureIndex()
	return d.files
}

func (d *Detector) ensureIndex() {
	if d.built {
		return
	}
	d.built = true
	d.index = make(map[key][]string)
	start := time.Now()
	for _, root := range d.roots {
		d.walk(root)
	}
	d.logger.Debug("local library indexed",
		logging.Int("roots", len(d.roots)),
		logging.Int("files", d.files),
		logging.Duration("duration", time.Since(start)))
}

func (d *Detector) walk(root string) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			d.logger.Debug("skipping unreadable local path",
				logging.String("path", path),
				logging.Error(err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || strings.HasSuffix(entry.Name(), PartialSuffix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		d.insert(path, info.Size())
		return nil
	})
	if err != nil {
		d.logger.Debug("local library walk stopped", logging.String("root", root), logging.Error(err))
	}
}

func (d *Detector) insert(path string, size int64) {
	k := key{name: normalizeName(filepath.Base(path)), size: size}
	for _, existing := range d.index[k] {
		if existing == path {
			return
		}
	}
	d.index[k] = append(d.index[k], path)
	d.files++
}

func normalizeName(name string) string {
	return norm.NFC.String(name)
}
