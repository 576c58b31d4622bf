package main

import (
	"context"
	"path/filepath"

	"adstudio/internal/infra"
	"adstudio/internal/storage"
)

// newObjectStore selects the object store backend: S3 when a bucket is
// configured, local filesystem otherwise. The second return is the static
// directory to serve when the filesystem backend is active.
func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, string, error) {
	if cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		return store, "", err
	}

	path := cfg.StoragePath
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	store, err := storage.NewFileStore(path, cfg.StorageBaseURL)
	return store, path, err
}
