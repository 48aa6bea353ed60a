package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	// Endpoint points the client at an emulator; authentication is skipped.
	Endpoint   string
	QuotaBytes int64
}

// GCS stores objects in a single Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	quota  int64
}

func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: gcs bucket is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCS{client: client, bucket: cfg.Bucket, quota: cfg.QuotaBytes}, nil
}

func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(key)
}

func (g *GCS) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = ContentTypeFor(key)
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fail(ctx, "upload", key, fmt.Errorf("write gcs object: %w", err))
	}
	if err := w.Close(); err != nil {
		return fail(ctx, "upload", key, fmt.Errorf("close gcs writer: %w", err))
	}
	return nil
}

// readCloserWithCancel ties the reader's context to Close.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}

func (g *GCS) Download(ctx context.Context, key string, rng *ByteRange) (*Download, error) {
	obj := g.object(key)
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fail(ctx, "download", key, ErrNotFound)
	}
	if err != nil {
		return nil, fail(ctx, "download", key, err)
	}

	offset, length, err := rng.Resolve(attrs.Size)
	if err != nil {
		return nil, fail(ctx, "download", key, err)
	}

	// The reader outlives this call; cancel runs on Close.
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := obj.NewRangeReader(readCtx, offset, length)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			err = ErrNotFound
		}
		return nil, fail(ctx, "download", key, err)
	}
	return &Download{
		Body:        &readCloserWithCancel{ReadCloser: r, cancel: cancel},
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Offset:      offset,
		Length:      length,
		Partial:     rng != nil,
	}, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := g.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fail(ctx, "delete", key, ErrNotFound)
	}
	if err != nil {
		return fail(ctx, "delete", key, err)
	}
	return nil
}

// Stats sums object sizes in the bucket and reports them against the configured quota.
func (g *GCS) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	var used int64
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Stats{}, fail(ctx, "stats", "", err)
		}
		used += attrs.Size
	}
	return statsFor(used, g.quota), nil
}
