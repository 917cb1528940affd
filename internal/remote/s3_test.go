package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data    []byte
	modTime time.Time
}

// fakeS3 is an in-memory bucket supporting delimiter listing and ranged GETs.
type fakeS3 struct {
	objects  map[string]fakeObject
	lastGet  *s3.GetObjectInput
	pageSize int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seenPrefixes := map[string]bool{}
	start := aws.ToString(in.ContinuationToken)
	count := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) || key <= start {
			continue
		}
		if f.pageSize > 0 && count >= f.pageSize {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(start)
			return out, nil
		}
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			cp := prefix + rest[:idx+1]
			if !seenPrefixes[cp] {
				seenPrefixes[cp] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
			}
		} else {
			obj := f.objects[key]
			out.Contents = append(out.Contents, types.Object{
				Key:          aws.String(key),
				Size:         aws.Int64(int64(len(obj.data))),
				LastModified: aws.Time(obj.modTime),
			})
		}
		start = key
		count++
	}
	return out, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modTime),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastGet = in
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	data := obj.data
	if r := aws.ToString(in.Range); r != "" {
		var offset int
		trimmed := strings.TrimSuffix(strings.TrimPrefix(r, "bytes="), "-")
		for _, ch := range trimmed {
			offset = offset*10 + int(ch-'0')
		}
		data = data[offset:]
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newFakeBucket() *fakeS3 {
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &fakeS3{objects: map[string]fakeObject{
		"downloads/movie.mkv":         {data: []byte("abcdefghij"), modTime: mod},
		"downloads/Show/ep1.mkv":      {data: []byte("12345"), modTime: mod},
		"downloads/Show/Extras/a.nfo": {data: []byte("x"), modTime: mod},
		"downloads/":                  {data: nil, modTime: mod},
		"other/ignored.txt":           {data: []byte("y"), modTime: mod},
	}}
}

func TestS3ClientReadDir(t *testing.T) {
	client := newS3ClientWithAPI(newFakeBucket(), "media")
	entries, err := client.ReadDir(context.Background(), "/downloads")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected one dir and one file, got %+v", entries)
	}
	for _, entry := range entries {
		switch entry.Path {
		case "/downloads/Show":
			if !entry.IsDir || entry.Name != "Show" {
				t.Fatalf("unexpected dir entry: %+v", entry)
			}
		case "/downloads/movie.mkv":
			if !entry.IsRegular || entry.Size != 10 || entry.ModTime.IsZero() {
				t.Fatalf("unexpected file entry: %+v", entry)
			}
		default:
			t.Fatalf("unexpected entry %+v", entry)
		}
	}
}

func TestS3ClientReadDirPaginates(t *testing.T) {
	bucket := newFakeBucket()
	bucket.pageSize = 1
	client := newS3ClientWithAPI(bucket, "media")
	entries, err := client.ReadDir(context.Background(), "/downloads/Show")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected entries across pages, got %+v", entries)
	}
}

func TestS3ClientStatOpenRemove(t *testing.T) {
	bucket := newFakeBucket()
	client := newS3ClientWithAPI(bucket, "media")
	ctx := context.Background()

	entry, err := client.Stat(ctx, "/downloads/movie.mkv")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if entry.Size != 10 || entry.Name != "movie.mkv" {
		t.Fatalf("unexpected stat: %+v", entry)
	}

	rc, err := client.Open(ctx, "/downloads/movie.mkv", 6)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "ghij" {
		t.Fatalf("expected ranged read, got %q", data)
	}
	if got := aws.ToString(bucket.lastGet.Range); got != "bytes=6-" {
		t.Fatalf("unexpected range header %q", got)
	}

	if err := client.Remove(ctx, "/downloads/movie.mkv"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := client.Stat(ctx, "/downloads/movie.mkv"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if err := client.Remove(ctx, "/downloads/movie.mkv"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist removing twice, got %v", err)
	}
	if _, err := client.Open(ctx, "/downloads/missing.mkv", 0); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist opening missing key, got %v", err)
	}
}

func TestS3KeyMapping(t *testing.T) {
	cases := map[string]string{
		"/downloads/a.mkv": "downloads/a.mkv",
		"downloads//a.mkv": "downloads/a.mkv",
		"/":                "",
	}
	for in, want := range cases {
		if got := pathToKey(in); got != want {
			t.Fatalf("pathToKey(%q) = %q, want %q", in, got, want)
		}
	}
	if got := dirPrefix("/"); got != "" {
		t.Fatalf("dirPrefix(/) = %q", got)
	}
	if got := dirPrefix("/downloads/"); got != "downloads/" {
		t.Fatalf("dirPrefix(/downloads/) = %q", got)
	}
}
