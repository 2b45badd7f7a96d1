// Package local implements the filesystem storage backend. Keys are paths,
// resolved against the base directory when one is set and against the working
// directory otherwise.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/storage"
	"github.com/resourcehub/resourcehub/pkg/checksum"
)

func init() {
	storage.Register("file", func(_ string, _ *config.StorageConfig) (storage.Storage, error) {
		return New("")
	})
}

// LocalStorage implements storage.Storage on the local filesystem.
type LocalStorage struct {
	basePath string
}

// New creates a filesystem backend rooted at basePath, creating it if needed.
func New(basePath string) (*LocalStorage, error) {
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) fullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Upload writes reader to key. The file is written next to its destination
// and renamed into place so a failed upload never truncates an existing file.
func (s *LocalStorage) Upload(_ context.Context, key string, reader io.Reader) (*storage.UploadResult, error) {
	fullPath := s.fullPath(key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	sum, err := checksum.CalculateSHA256(io.TeeReader(reader, tmp))
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	stat, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &storage.UploadResult{
		Key:      key,
		Size:     stat.Size(),
		Checksum: sum,
	}, nil
}

// Download opens the file at key.
func (s *LocalStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Exists checks if a file exists at key.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}
