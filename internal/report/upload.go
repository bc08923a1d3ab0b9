package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nvandessel/reassort/internal/pathutil"
)

// S3URI is a parsed s3://bucket/prefix location.
type S3URI struct {
	Bucket string
	Prefix string
}

// ParseS3URI parses an S3 URI like s3://bucket/path/to/prefix.
func ParseS3URI(uri string) (*S3URI, error) {
	if !IsS3URI(uri) {
		return nil, fmt.Errorf("invalid S3 URI: must start with s3://")
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
	if bucket == "" {
		return nil, fmt.Errorf("invalid S3 URI: missing bucket name")
	}
	return &S3URI{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// IsS3URI checks if a path is an S3 URI.
func IsS3URI(p string) bool {
	return strings.HasPrefix(p, "s3://")
}

// Key joins the prefix and a relative file name into an object key.
func (u *S3URI) Key(rel string) string {
	rel = filepath.ToSlash(rel)
	if u.Prefix == "" {
		return rel
	}
	return path.Join(u.Prefix, rel)
}

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies finished output files to S3.
type Uploader struct {
	client ObjectPutter
	uri    *S3URI
	logger *slog.Logger
}

// NewUploader creates an uploader for uri using the default AWS credential
// chain. An empty region falls back to the environment.
func NewUploader(ctx context.Context, uri, region string) (*Uploader, error) {
	parsed, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewUploaderWithClient(s3.NewFromConfig(cfg), parsed), nil
}

// NewUploaderWithClient creates an uploader around an existing client.
func NewUploaderWithClient(client ObjectPutter, uri *S3URI) *Uploader {
	return &Uploader{
		client: client,
		uri:    uri,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the structured logger.
func (u *Uploader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		u.logger = logger
	}
}

// UploadFiles uploads files, keyed by their path relative to dir. It stops
// at the first failure and returns the number of files uploaded.
func (u *Uploader) UploadFiles(ctx context.Context, dir string, files []string) (int, error) {
	for i, file := range files {
		rel, err := pathutil.Rel(dir, file)
		if err != nil {
			u.logger.Debug("uploading under base name", "path", pathutil.RedactPath(file), "reason", err)
			rel = filepath.Base(file)
		}
		if err := u.upload(ctx, file, u.uri.Key(rel)); err != nil {
			return i, err
		}
	}
	return len(files), nil
}

func (u *Uploader) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.uri.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	u.logger.Debug("uploaded", "bucket", u.uri.Bucket, "key", key, "bytes", info.Size())
	return nil
}
