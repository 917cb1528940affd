package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Options contains the connection parameters for DialS3.
type S3Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// s3API is the subset of the S3 client used here.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Client implements Client on top of an S3 bucket. Directories are
// emulated with "/"-delimited key prefixes.
type S3Client struct {
	api    s3API
	bucket string
}

// DialS3 builds an S3 client and verifies that the bucket is reachable.
// Static credentials are used when configured, otherwise the default AWS
// credential chain.
func DialS3(ctx context.Context, opts S3Options) (*S3Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(opts.Bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s not reachable: %w", opts.Bucket, err)
	}
	return &S3Client{api: client, bucket: opts.Bucket}, nil
}

func newS3ClientWithAPI(api s3API, bucket string) *S3Client {
	return &S3Client{api: api, bucket: bucket}
}

// ReadDir lists the objects and common prefixes directly below dir.
func (c *S3Client) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	prefix := dirPrefix(dir)
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(c.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			key := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			if key == "" {
				continue
			}
			entries = append(entries, Entry{
				Path:  keyToPath(key),
				Name:  path.Base(key),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			entries = append(entries, Entry{
				Path:      keyToPath(key),
				Name:      path.Base(key),
				Size:      aws.ToInt64(obj.Size),
				ModTime:   aws.ToTime(obj.LastModified),
				IsRegular: true,
			})
		}
	}
	return entries, nil
}

// Stat returns metadata for a single object.
func (c *S3Client) Stat(ctx context.Context, p string) (Entry, error) {
	key := pathToKey(p)
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Entry{}, fmt.Errorf("%s: %w", p, ErrNotExist)
		}
		return Entry{}, fmt.Errorf("head %s: %w", p, err)
	}
	return Entry{
		Path:      keyToPath(key),
		Name:      path.Base(key),
		Size:      aws.ToInt64(out.ContentLength),
		ModTime:   aws.ToTime(out.LastModified),
		IsRegular: true,
	}, nil
}

// Open issues a ranged GET starting at offset.
func (c *S3Client) Open(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(pathToKey(p)),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}
	out, err := c.api.GetObject(ctx, input)
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotExist)
		}
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return out.Body, nil
}

// Remove deletes an object. S3 deletes are idempotent, so the object is
// checked first to keep ErrNotExist semantics.
func (c *S3Client) Remove(ctx context.Context, p string) error {
	if _, err := c.Stat(ctx, p); err != nil {
		return err
	}
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(pathToKey(p)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no session.
func (c *S3Client) Close() error { return nil }

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// pathToKey maps "/a/b.mkv" to "a/b.mkv".
func pathToKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// dirPrefix maps "/a" to "a/" and "/" to "".
func dirPrefix(dir string) string {
	key := pathToKey(dir)
	if key == "" {
		return ""
	}
	return key + "/"
}

func keyToPath(key string) string {
	return "/" + key
}
