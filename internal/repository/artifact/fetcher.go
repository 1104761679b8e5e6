// Package artifact downloads model artifacts from S3-compatible storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an artifact object does not exist.
var ErrNotFound = errors.New("artifact not found")

// objectStore is the subset of the minio client the fetcher uses.
type objectStore interface {
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	FGetObject(ctx context.Context, bucket, key, filePath string, opts minio.GetObjectOptions) error
}

// Config describes the bucket and the local cache directory.
type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
	CacheDir  string
}

// Fetcher mirrors named objects into a local directory.
type Fetcher struct {
	store    objectStore
	bucket   string
	prefix   string
	cacheDir string
	logger   *zap.Logger
}

// New connects to the object store.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return newFetcher(client, cfg, logger), nil
}

func newFetcher(store objectStore, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		store:    store,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		cacheDir: cfg.CacheDir,
		logger:   logger,
	}
}

// Fetch downloads name (relative to the prefix) and returns its local path.
// A local copy of the same size is reused.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	key := path.Join(f.prefix, name)
	local := filepath.Join(f.cacheDir, filepath.FromSlash(name))

	info, err := f.store.StatObject(ctx, f.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return "", fmt.Errorf("%w: s3://%s/%s", ErrNotFound, f.bucket, key)
		}
		return "", fmt.Errorf("stat s3://%s/%s: %w", f.bucket, key, err)
	}

	if st, err := os.Stat(local); err == nil && st.Size() == info.Size {
		f.logger.Debug("Artifact cached", zap.String("key", key), zap.String("path", local))
		return local, nil
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := f.store.FGetObject(ctx, f.bucket, key, local, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download s3://%s/%s: %w", f.bucket, key, err)
	}

	f.logger.Info("Artifact downloaded",
		zap.String("key", key),
		zap.String("path", local),
		zap.Int64("bytes", info.Size),
	)
	return local, nil
}

// FetchAll downloads every name and returns local paths in the same order.
func (f *Fetcher) FetchAll(ctx context.Context, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		p, err := f.Fetch(ctx, n)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
