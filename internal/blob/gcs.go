package blob

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSProvider saves objects to a Google Cloud Storage bucket. Authentication
// uses Application Default Credentials.
type GCSProvider struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSProvider builds the client and verifies access to the bucket so a bad
// configuration fails at startup instead of mid-crawl.
func NewGCSProvider(ctx context.Context, bucket string, logger *zap.Logger) (*GCSProvider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close gcs client after bucket check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", bucket, err)
	}
	return &GCSProvider{client: client, bucket: bucket, logger: logger}, nil
}

// Save uploads data to the bucket under objectName.
func (p *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	wc := p.client.Bucket(p.bucket).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			p.logger.Warn("failed to close gcs writer after write failure", zap.Error(closeErr))
		}
		return fmt.Errorf("write gcs object %s: %w", objectName, err)
	}
	// Close finalizes the upload; an error here means the object did not land.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close gcs writer for object %s: %w", objectName, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}
