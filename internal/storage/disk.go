package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type DiskStore struct {
	Dir string
}

func (s *DiskStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create upload dir: %w", err)
	}

	path := filepath.Join(s.Dir, filepath.Base(key))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return path, nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	path := filepath.Join(s.Dir, filepath.Base(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}
