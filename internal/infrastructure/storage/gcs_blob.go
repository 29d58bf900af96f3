package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"DailyPodcast/internal/ports"
)

// GCSConfig selects the bucket and how to reach it.
type GCSConfig struct {
	Bucket        string
	PublicBaseURL string
	// Endpoint targets an emulator; authentication is disabled when set.
	Endpoint string
}

// GCSBlobStore keeps podcast audio and temp chunks in a GCS bucket.
type GCSBlobStore struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

var _ ports.BlobStore = (*GCSBlobStore)(nil)

func NewGCSBlobStore(ctx context.Context, cfg GCSConfig, logger *slog.Logger) (*GCSBlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.Endpoint != "" {
		opts = []option.ClientOption{
			option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/") + "/storage/v1/"),
			option.WithoutAuthentication(),
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log := logger.With("component", "gcs")
	log.Info("object storage initialized", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return &GCSBlobStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        log,
	}, nil
}

func (g *GCSBlobStore) Close() error {
	return g.client.Close()
}

func (g *GCSBlobStore) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if strings.HasSuffix(key, ".mp3") {
		w.ContentType = "audio/mpeg"
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (g *GCSBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object %q: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %q: %w", key, err)
	}
	return data, nil
}

func (g *GCSBlobStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, g.bucket, err)
	}
	return nil
}

func (g *GCSBlobStore) Head(ctx context.Context, key string) (int64, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return 0, ports.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get GCS attrs %q: %w", key, err)
	}
	return attrs.Size, nil
}

func (g *GCSBlobStore) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if g.publicBaseURL != "" {
		return g.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key)
}
