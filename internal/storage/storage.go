// Package storage abstracts where attachment blobs live. Local disk is the
// default; an S3 bucket is used when configured.
package storage

import (
	"context"
	"io"

	appconfig "github.com/taskmaster-pro/taskmaster/internal/config"
)

// Store persists attachment content under a key and returns a location
// string recorded on the attachment row.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

func New(ctx context.Context, cfg *appconfig.Config) (Store, error) {
	if cfg.S3Bucket != "" {
		return newS3Store(ctx, cfg)
	}
	return &DiskStore{Dir: cfg.UploadDir}, nil
}
