package testsupport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"mediasync/internal/remote"
)

type fakeFile struct {
	data    []byte
	modTime time.Time
}

type openFailure struct {
	remaining int
	err       error
}

type interruption struct {
	after     int64
	remaining int
}

// FakeRemote is an in-memory remote.Client with failure injection. Directories
// are implied by file paths or added explicitly with AddDir.
type FakeRemote struct {
	mu            sync.Mutex
	files         map[string]*fakeFile
	dirs          map[string]struct{}
	listFailures  map[string]error
	statFailures  map[string]error
	openFailures  map[string]*openFailure
	interruptions map[string]*interruption
	removeFails   map[string]error
	opens         map[string][]int64
	removed       []string
	closed        bool
}

// NewFakeRemote returns an empty fake remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		files:         make(map[string]*fakeFile),
		dirs:          map[string]struct{}{"/": {}},
		listFailures:  make(map[string]error),
		statFailures:  make(map[string]error),
		openFailures:  make(map[string]*openFailure),
		interruptions: make(map[string]*interruption),
		removeFails:   make(map[string]error),
		opens:         make(map[string][]int64),
	}
}

// AddFile stores data at p with the given modification time.
func (f *FakeRemote) AddFile(p string, data []byte, modTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	f.files[p] = &fakeFile{data: append([]byte(nil), data...), modTime: modTime}
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		f.dirs[dir] = struct{}{}
		if dir == "/" || dir == "." {
			break
		}
	}
}

// AddSizedFile stores size bytes of Pattern at p.
func (f *FakeRemote) AddSizedFile(p string, size int64, modTime time.Time) {
	f.AddFile(p, Pattern(size), modTime)
}

// AddDir registers an empty directory.
func (f *FakeRemote) AddDir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for dir := path.Clean(p); ; dir = path.Dir(dir) {
		f.dirs[dir] = struct{}{}
		if dir == "/" || dir == "." {
			break
		}
	}
}

// FailListing makes ReadDir(dir) return err.
func (f *FakeRemote) FailListing(dir string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFailures[path.Clean(dir)] = err
}

// FailStat makes Stat(p) return err.
func (f *FakeRemote) FailStat(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statFailures[path.Clean(p)] = err
}

// FailOpen makes the next times calls to Open(p) return err. A negative
// times fails every call.
func (f *FakeRemote) FailOpen(p string, times int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openFailures[path.Clean(p)] = &openFailure{remaining: times, err: err}
}

// InterruptAfter makes the next times readers for p fail with
// io.ErrUnexpectedEOF once after bytes of the file have been delivered.
func (f *FakeRemote) InterruptAfter(p string, after int64, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interruptions[path.Clean(p)] = &interruption{after: after, remaining: times}
}

// FailRemove makes Remove(p) return err.
func (f *FakeRemote) FailRemove(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeFails[path.Clean(p)] = err
}

// Has reports whether a file exists at p.
func (f *FakeRemote) Has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path.Clean(p)]
	return ok
}

// OpenOffsets returns the offsets of every Open call for p.
func (f *FakeRemote) OpenOffsets(p string) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.opens[path.Clean(p)]...)
}

// OpenCount returns the total number of Open calls across all paths.
func (f *FakeRemote) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, offsets := range f.opens {
		total += len(offsets)
	}
	return total
}

// Removed returns the paths deleted through Remove, in call order.
func (f *FakeRemote) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// Closed reports whether Close was called.
func (f *FakeRemote) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ReadDir implements remote.Client.
func (f *FakeRemote) ReadDir(ctx context.Context, dir string) ([]remote.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dir = path.Clean(dir)
	if err, ok := f.listFailures[dir]; ok {
		return nil, err
	}
	if _, ok := f.dirs[dir]; !ok {
		return nil, fmt.Errorf("%s: %w", dir, remote.ErrNotExist)
	}
	seen := make(map[string]bool)
	var entries []remote.Entry
	for d := range f.dirs {
		if d != dir && path.Dir(d) == dir && !seen[d] {
			seen[d] = true
			entries = append(entries, remote.Entry{Path: d, Name: path.Base(d), IsDir: true})
		}
	}
	for p, file := range f.files {
		if path.Dir(p) != dir {
			continue
		}
		entries = append(entries, remote.Entry{
			Path:      p,
			Name:      path.Base(p),
			Size:      int64(len(file.data)),
			ModTime:   file.modTime,
			IsRegular: true,
		})
	}
	// Map iteration is random; callers must not depend on server order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name > entries[j].Name })
	return entries, nil
}

// Stat implements remote.Client.
func (f *FakeRemote) Stat(ctx context.Context, p string) (remote.Entry, error) {
	if err := ctx.Err(); err != nil {
		return remote.Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err, ok := f.statFailures[p]; ok {
		return remote.Entry{}, err
	}
	file, ok := f.files[p]
	if !ok {
		return remote.Entry{}, fmt.Errorf("%s: %w", p, remote.ErrNotExist)
	}
	return remote.Entry{Path: p, Name: path.Base(p), Size: int64(len(file.data)), ModTime: file.modTime, IsRegular: true}, nil
}

// Open implements remote.Client.
func (f *FakeRemote) Open(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	f.opens[p] = append(f.opens[p], offset)
	if failure, ok := f.openFailures[p]; ok && failure.remaining != 0 {
		if failure.remaining > 0 {
			failure.remaining--
		}
		return nil, failure.err
	}
	file, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, remote.ErrNotExist)
	}
	if offset > int64(len(file.data)) {
		return nil, fmt.Errorf("offset %d beyond size %d", offset, len(file.data))
	}
	var reader io.Reader = bytes.NewReader(file.data[offset:])
	if cut, ok := f.interruptions[p]; ok && cut.remaining > 0 {
		cut.remaining--
		limit := cut.after - offset
		if limit < 0 {
			limit = 0
		}
		reader = io.MultiReader(io.LimitReader(reader, limit), errReader{err: io.ErrUnexpectedEOF})
	}
	return io.NopCloser(reader), nil
}

// Remove implements remote.Client.
func (f *FakeRemote) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	if err, ok := f.removeFails[p]; ok {
		return err
	}
	if _, ok := f.files[p]; !ok {
		return fmt.Errorf("%s: %w", p, remote.ErrNotExist)
	}
	delete(f.files, p)
	f.removed = append(f.removed, p)
	return nil
}

// Close implements remote.Client.
func (f *FakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// ErrInjected is a generic failure for tests that only need "something broke".
var ErrInjected = errors.New("injected failure")

// HasRemovedPrefix reports whether any removed path starts with prefix.
func (f *FakeRemote) HasRemovedPrefix(prefix string) bool {
	for _, p := range f.Removed() {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
