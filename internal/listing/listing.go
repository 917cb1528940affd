package listing

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"mediasync/internal/logging"
	"mediasync/internal/remote"
)

// File is a regular remote file discovered under one of the configured roots.
type File struct {
	// FullPath is the remote identity of the file and the ledger key.
	FullPath string
	Name     string
	Size     int64
	ModTime  time.Time
	// Root is the configured root the file was found under.
	Root string
}

// RelativePath returns the slash-separated path of the file below its root.
func (f File) RelativePath() string {
	rel := strings.TrimPrefix(f.FullPath, f.Root)
	return strings.TrimPrefix(rel, "/")
}

// Stats summarizes a listing pass.
type Stats struct {
	Roots       int
	Directories int
	Files       int
	FailedDirs  int
	Duration    time.Duration
	// Err is set when the context was cancelled before enumeration finished.
	Err error
}

type pending struct {
	dir  string
	root string
}

// List returns every regular file under roots. Entries are visited in
// lexical order, so an unchanged tree always lists in the same order.
func List(ctx context.Context, client remote.Client, roots []string, logger *slog.Logger) ([]File, Stats) {
	logger = logging.NewComponentLogger(logger, "listing")
	start := time.Now()
	stats := Stats{Roots: len(roots)}

	stack := make([]pending, 0, len(roots))
	rootSet := make(map[string]struct{}, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		root := path.Clean(roots[i])
		rootSet[root] = struct{}{}
		stack = append(stack, pending{dir: root, root: root})
	}
	// Overlapping roots reach the same directory twice; each is listed once.
	visited := make(map[string]struct{})

	var files []File
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			stats.Err = err
			break
		}
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[next.dir]; ok {
			continue
		}
		visited[next.dir] = struct{}{}

		entries, err := client.ReadDir(ctx, next.dir)
		if err != nil {
			if ctx.Err() != nil {
				stats.Err = ctx.Err()
				break
			}
			stats.FailedDirs++
			logging.WarnWithContext(logger, "remote directory listing failed; subtree skipped", "remote_list_failed",
				logging.String("directory", next.dir),
				logging.String("root", next.root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check remote permissions for the directory"),
				logging.String(logging.FieldImpact, "files below this directory are not synced this run"),
			)
			continue
		}
		stats.Directories++

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		var subdirs []pending
		for _, entry := range entries {
			if entry.Name == "." || entry.Name == ".." {
				continue
			}
			fullPath := entry.Path
			if fullPath == "" {
				fullPath = path.Join(next.dir, entry.Name)
			}
			switch {
			case entry.IsDir:
				root := next.root
				if _, ok := rootSet[path.Clean(fullPath)]; ok {
					root = path.Clean(fullPath)
				}
				subdirs = append(subdirs, pending{dir: path.Clean(fullPath), root: root})
			case entry.IsRegular:
				files = append(files, File{
					FullPath: fullPath,
					Name:     entry.Name,
					Size:     entry.Size,
					ModTime:  entry.ModTime,
					Root:     next.root,
				})
			default:
				logger.Debug("skipping non-regular remote entry", logging.String("path", fullPath))
			}
		}
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	stats.Files = len(files)
	stats.Duration = time.Since(start)
	logger.Info("remote listing complete",
		logging.String(logging.FieldEventType, "remote_listed"),
		logging.Int("roots", stats.Roots),
		logging.Int("directories", stats.Directories),
		logging.Int("files", stats.Files),
		logging.Int("failed_dirs", stats.FailedDirs),
		logging.Duration("duration", stats.Duration),
	)
	return files, stats
}
