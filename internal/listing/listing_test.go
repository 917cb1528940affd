package listing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediasync/internal/listing"
	"mediasync/internal/logging"
	"mediasync/internal/remote"
	"mediasync/internal/testsupport"
)

func paths(files []listing.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.FullPath)
	}
	return out
}

func equalStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d entries %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestListDeterministicOrder(t *testing.T) {
	fake := testsupport.NewFakeRemote()
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fake.AddSizedFile("/remote/b/two.mkv", 20, mod)
	fake.AddSizedFile("/remote/a/one.mkv", 10, mod)
	fake.AddSizedFile("/remote/top.txt", 5, mod)
	fake.AddSizedFile("/remote/a/nested/deep.flac", 7, mod)
	fake.AddSizedFile("/other/x.epub", 3, mod)

	files, stats := listing.List(context.Background(), fake, []string{"/remote", "/other"}, logging.NewNop())
	if stats.Err != nil {
		t.Fatalf("unexpected error: %v", stats.Err)
	}
	equalStrings(t, paths(files), []string{
		"/remote/top.txt",
		"/remote/a/one.mkv",
		"/remote/a/nested/deep.flac",
		"/remote/b/two.mkv",
		"/other/x.epub",
	})
	if stats.Files != 5 || stats.Roots != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	again, _ := listing.List(context.Background(), fake, []string{"/remote", "/other"}, logging.NewNop())
	equalStrings(t, paths(again), paths(files))
}

func TestListOverlappingRootsListsEachFileOnce(t *testing.T) {
	fake := testsupport.NewFakeRemote()
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fake.AddSizedFile("/a/top.mkv", 10, mod)
	fake.AddSizedFile("/a/b/F/inner.mkv", 20, mod)

	for _, roots := range [][]string{{"/a", "/a/b"}, {"/a/b", "/a"}} {
		files, stats := listing.List(context.Background(), fake, roots, logging.NewNop())
		if stats.Err != nil {
			t.Fatalf("roots %v: unexpected error: %v", roots, stats.Err)
		}
		if len(files) != 2 || stats.Files != 2 {
			t.Fatalf("roots %v: listed %v, want each file once", roots, paths(files))
		}
		for _, f := range files {
			if f.FullPath == "/a/b/F/inner.mkv" && (f.Root != "/a/b" || f.RelativePath() != "F/inner.mkv") {
				t.Fatalf("roots %v: inner file root = %q rel = %q", roots, f.Root, f.RelativePath())
			}
		}
	}
}

func TestListCarriesMetadata(t *testing.T) {
	fake := testsupport.NewFakeRemote()
	mod := time.Date(2023, 12, 24, 8, 30, 0, 0, time.UTC)
	fake.AddSizedFile("/remote/Show/S01/ep.mkv", 1234, mod)

	files, _ := listing.List(context.Background(), fake, []string{"/remote"}, logging.NewNop())
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	got := files[0]
	if got.Name != "ep.mkv" || got.Size != 1234 || !got.ModTime.Equal(mod) || got.Root != "/remote" {
		t.Fatalf("unexpected file %+v", got)
	}
	if rel := got.RelativePath(); rel != "Show/S01/ep.mkv" {
		t.Fatalf("RelativePath = %q", rel)
	}
}

func TestListSkipsFailingDirectory(t *testing.T) {
	fake := testsupport.NewFakeRemote()
	mod := time.Now()
	fake.AddSizedFile("/remote/ok/a.mkv", 1, mod)
	fake.AddSizedFile("/remote/locked/b.mkv", 1, mod)
	fake.AddSizedFile("/remote/locked/inner/c.mkv", 1, mod)
	fake.AddSizedFile("/remote/z.mkv", 1, mod)
	fake.FailListing("/remote/locked", errors.New("permission denied"))

	files, stats := listing.List(context.Background(), fake, []string{"/remote"}, logging.NewNop())
	equalStrings(t, paths(files), []string{"/remote/z.mkv", "/remote/ok/a.mkv"})
	if stats.FailedDirs != 1 {
		t.Fatalf("FailedDirs = %d, want 1", stats.FailedDirs)
	}
	if stats.Err != nil {
		t.Fatalf("directory failure must not fail the listing: %v", stats.Err)
	}
}

func TestListMissingRootIsSkipped(t *testing.T) {
	fake := testsupport.NewFakeRemote()
	fake.AddSizedFile("/present/a.mkv", 1, time.Now())

	files, stats := listing.List(context.Background(), fake, []string{"/absent", "/present"}, logging.NewNop())
	equalStrings(t, paths(files), []string{"/present/a.mkv"})
	if stats.FailedDirs != 1 {
		t.Fatalf("FailedDirs = %d, want 1", stats.FailedDirs)
	}
}

type scriptedClient struct {
	remote.Client
	entries map[string][]remote.Entry
}

func (c scriptedClient) ReadDir(_ context.Context, dir string) ([]remote.Entry, error) {
	return c.entries[dir], nil
}

func TestListIgnoresDotEntriesAndSpecialFiles(t *testing.T) {
	client := scriptedClient{entries: map[string][]remote.Entry{
		"/r": {
			{Name: ".", IsDir: true},
			{Name: "..", IsDir: true},
			{Name: "link.mkv"},
			{Name: "real.mkv", IsRegular: true, Size: 4},
		},
	}}

	files, _ := listing.List(context.Background(), client, []string{"/r"}, logging.NewNop())
	equalStrings(t, paths(files), []string{"/r/real.mkv"})
}

func TestListStopsOnCancellation(t *testing.T) {
	fake := testsupport.NewFakeRemote()
	fake.AddSizedFile("/remote/a.mkv", 1, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files, stats := listing.List(ctx, fake, []string{"/remote"}, logging.NewNop())
	if len(files) != 0 {
		t.Fatalf("expected no files after cancellation, got %v", paths(files))
	}
	if !errors.Is(stats.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", stats.Err)
	}
}
