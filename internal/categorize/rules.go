package categorize

import (
	"path"
	"strings"

	"mediasync/internal/config"
)

const bytesPerGiB = 1 << 30

// Rules carries the extension sets, size threshold, and library folder names
// used by Categorize.
type Rules struct {
	Video     map[string]struct{}
	Audio     map[string]struct{}
	Book      map[string]struct{}
	Companion map[string]struct{}

	// MovieMinSize is the smallest video, in bytes, treated as a movie.
	MovieMinSize int64

	MoviesDir    string
	ShowsDir     string
	MusicDir     string
	BooksDir     string
	DownloadsDir string
}

// RulesFromConfig builds Rules from the loaded configuration.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		Video:        extensionSet(cfg.Categories.VideoExtensions),
		Audio:        extensionSet(cfg.Categories.AudioExtensions),
		Book:         extensionSet(cfg.Categories.BookExtensions),
		Companion:    extensionSet(cfg.Categories.CompanionExtensions),
		MovieMinSize: int64(cfg.Categories.MovieMinSizeGB * bytesPerGiB),
		MoviesDir:    cfg.Library.MoviesDir,
		ShowsDir:     cfg.Library.ShowsDir,
		MusicDir:     cfg.Library.MusicDir,
		BooksDir:     cfg.Library.BooksDir,
		DownloadsDir: cfg.Library.DownloadsDir,
	}
}

func extensionSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// Extension returns the lower-cased extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// IsCompanion reports whether name carries a companion extension.
func (r Rules) IsCompanion(name string) bool {
	_, ok := r.Companion[Extension(name)]
	return ok
}

func (r Rules) isAudio(ext string) bool {
	_, ok := r.Audio[ext]
	return ok
}

func (r Rules) isBook(ext string) bool {
	_, ok := r.Book[ext]
	return ok
}

func (r Rules) isVideo(ext string) bool {
	_, ok := r.Video[ext]
	return ok
}
