// Package dataset fetches the seed CSV from S3-compatible storage. When no
// bucket is configured the NoopFetcher is used and seeding reads the local
// CSV path directly.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/offtrack/offtrack/internal/config"
)

// ErrNotConfigured is returned when S3 dataset storage is not configured.
var ErrNotConfigured = errors.New("dataset storage not configured")

// Fetcher downloads the seed dataset to a local path.
type Fetcher interface {
	// Fetch downloads the configured dataset object to destPath.
	Fetch(ctx context.Context, destPath string) error
}

// s3Client defines the minimal minio.Client operation used by S3Fetcher.
// This interface enables testing with mock implementations.
type s3Client interface {
	FGetObject(ctx context.Context, bucket, objectName, filePath string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FGetObject(ctx context.Context, bucket, objectName, filePath string) error {
	return w.client.FGetObject(ctx, bucket, objectName, filePath, minio.GetObjectOptions{})
}

// S3Fetcher downloads datasets from S3-compatible storage.
type S3Fetcher struct {
	client s3Client
	bucket string
	object string
}

// Fetch downloads the dataset object to destPath.
func (f *S3Fetcher) Fetch(ctx context.Context, destPath string) error {
	if err := f.client.FGetObject(ctx, f.bucket, f.object, destPath); err != nil {
		return fmt.Errorf("download dataset from S3: %w", err)
	}
	return nil
}

// NoopFetcher is used when S3 storage is not configured.
type NoopFetcher struct{}

// Fetch returns ErrNotConfigured.
func (f *NoopFetcher) Fetch(ctx context.Context, destPath string) error {
	return ErrNotConfigured
}

// NewFetcher creates the appropriate Fetcher based on configuration.
// Returns NoopFetcher when bucket is empty, S3Fetcher otherwise.
func NewFetcher(cfg config.DatasetConfig) (Fetcher, error) {
	if cfg.Bucket == "" {
		return &NoopFetcher{}, nil
	}
	if cfg.Object == "" {
		return nil, fmt.Errorf("dataset bucket %q configured without an object key", cfg.Bucket)
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Fetcher{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
		object: cfg.Object,
	}, nil
}
