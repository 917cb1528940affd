package categorize

import (
	"path"
	"strings"
)

// Candidate is the part of a remote file the categorizer looks at.
type Candidate struct {
	Name     string
	Size     int64
	FullPath string
}

// FolderCache maps a remote parent folder to the base folder chosen for it
// during the current run.
type FolderCache struct {
	bases     map[string]string
	downloads string
}

// NewFolderCache returns an empty run-scoped cache.
func NewFolderCache() *FolderCache {
	return &FolderCache{bases: make(map[string]string)}
}

// Lookup returns the cached base folder for parentFolder.
func (c *FolderCache) Lookup(parentFolder string) (string, bool) {
	if c == nil || parentFolder == "" {
		return "", false
	}
	base, ok := c.bases[parentFolder]
	return base, ok
}

// Len returns the number of cached folders.
func (c *FolderCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.bases)
}

// remember stores base for parentFolder. The first decision wins, except a
// Downloads decision yields to a later specific category.
func (c *FolderCache) remember(parentFolder, base, downloads string) {
	if c == nil || parentFolder == "" {
		return
	}
	existing, ok := c.bases[parentFolder]
	if !ok || (existing == downloads && base != downloads) {
		c.bases[parentFolder] = base
	}
}

// Categorize returns the destination folder for file relative to the library
// base directory, slash separated.
func Categorize(file Candidate, roots []string, rules Rules, cache *FolderCache) string {
	parent := ParentFolder(file.FullPath, roots)
	ext := Extension(file.Name)

	if _, companion := rules.Companion[ext]; companion {
		if base, ok := cache.Lookup(parent); ok {
			return join(base, parent)
		}
	}

	var base string
	switch {
	case rules.isAudio(ext):
		base = rules.MusicDir
	case rules.isBook(ext):
		base = rules.BooksDir
	case LooksLikeEpisode(file.Name) || LooksLikeEpisode(parent):
		base = rules.ShowsDir
	case rules.isVideo(ext) && file.Size >= rules.MovieMinSize:
		base = rules.MoviesDir
	default:
		base = rules.DownloadsDir
	}

	cache.remember(parent, base, rules.DownloadsDir)
	return join(base, parent)
}

// ParentFolder returns the first path segment of fullPath below the longest
// root containing it, or "" when the file sits directly under the root or
// outside every root.
func ParentFolder(fullPath string, roots []string) string {
	rel, ok := relativeToRoot(fullPath, roots)
	if !ok {
		return ""
	}
	first, _, found := strings.Cut(rel, "/")
	if !found {
		return ""
	}
	return first
}

// Subpath returns the part of fullPath below its parent folder: the path the
// file keeps inside its destination folder.
func Subpath(fullPath string, roots []string) string {
	rel, ok := relativeToRoot(fullPath, roots)
	if !ok {
		return path.Base(fullPath)
	}
	_, rest, found := strings.Cut(rel, "/")
	if !found {
		return rel
	}
	return rest
}

func relativeToRoot(fullPath string, roots []string) (string, bool) {
	fullPath = path.Clean(fullPath)
	best := ""
	matched := false
	for _, root := range roots {
		root = path.Clean(root)
		if !within(fullPath, root) {
			continue
		}
		if !matched || len(root) > len(best) {
			best = root
			matched = true
		}
	}
	if !matched {
		return "", false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(fullPath, best), "/")
	return rel, rel != ""
}

func within(fullPath, root string) bool {
	if root == "/" {
		return strings.HasPrefix(fullPath, "/") && fullPath != "/"
	}
	return strings.HasPrefix(fullPath, root+"/")
}

func join(base, parent string) string {
	if parent == "" {
		return base
	}
	return path.Join(base, parent)
}
