// Package storage mirrors materialized cache files to an S3-compatible
// bucket so multiple instances can share one warm cache.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/KalilDev/cached-sized-image/internal/config"
)

// S3Mirror uploads cache files to a bucket. Uploads are best effort: a
// failed upload is logged and dropped, never surfaced to the image path.
type S3Mirror struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewS3Mirror connects to the configured S3 endpoint.
func NewS3Mirror(cfg *config.Config, logger *slog.Logger) (*S3Mirror, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize s3 client: %w", err)
	}
	return &S3Mirror{client: client, bucket: cfg.MirrorBucket, logger: logger}, nil
}

// Put uploads one object. Implements store.Mirror.
func (m *S3Mirror) Put(object string, data []byte) {
	contentType := http.DetectContentType(data)
	_, err := m.client.PutObject(
		context.Background(),
		m.bucket,
		object,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		m.logger.Warn("mirror upload failed", "bucket", m.bucket, "object", object, "error", err)
		return
	}
	m.logger.Debug("mirrored object", "bucket", m.bucket, "object", object, "size", len(data))
}
