package storage

import (
	"context"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"prepai/internal/config"
	"prepai/internal/platform/logger"
)

// GCSStore persists raw upload bytes in a Google Cloud Storage bucket and
// hands back a retrievable URL.
type GCSStore struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
	log           *logger.Logger
}

func NewGCSStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client failed: %w", err)
	}

	return &GCSStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		log:           log.With("component", "gcs_store"),
	}, nil
}

// Upload writes data under key and returns the object's public URL.
func (s *GCSStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %q failed: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %q failed: %w", key, err)
	}
	s.log.Debugw("object uploaded", "key", key, "bytes", len(data))
	return s.publicURL(key), nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q failed: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}
