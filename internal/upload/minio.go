package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"content_sync/internal/config"
)

type minioStore struct {
	client *minio.Client
}

// Connect builds a Service backed by the configured S3-compatible endpoint.
// An unconfigured endpoint yields a Service without a store.
func Connect(cfg config.UploadConfig, logger *slog.Logger) (*Service, error) {
	if !cfg.Configured() {
		return New(nil, "", logger), nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	publicBaseURL := cfg.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = client.EndpointURL().String()
	}

	return New(&minioStore{client: client}, publicBaseURL, logger), nil
}

func (m *minioStore) PutObject(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType, cacheControl string) error {
	_, err := m.client.PutObject(ctx, bucket, name, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	return err
}

func (m *minioStore) RemoveObject(ctx context.Context, bucket, name string) error {
	return m.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{})
}
