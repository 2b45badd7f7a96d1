package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/storage"
	"github.com/resourcehub/resourcehub/internal/store"
	"github.com/resourcehub/resourcehub/pkg/checksum"
)

var (
	// ErrExportNotFound is returned by Load when the export does not exist.
	ErrExportNotFound = errors.New("export not found")

	// ErrSnapshotExists is returned by Snapshot when the target already exists
	// and overwriting was not requested.
	ErrSnapshotExists = errors.New("snapshot target already exists")
)

// Source is the storage an export is read from.
type Source interface {
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Destination is the storage a snapshot is written to.
type Destination interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, reader io.Reader) (*storage.UploadResult, error)
}

// Lister returns every row of the resources table.
type Lister interface {
	GetAll(ctx context.Context, opts store.QueryOptions) ([]models.Resource, error)
}

// Load reads and parses the export at key. When expectedSHA256 is set the raw
// bytes must match it; a mismatch is a *checksum.MismatchError. The digest of
// what was read is returned either way.
func Load(ctx context.Context, src Source, key, expectedSHA256 string) ([]Record, string, error) {
	found, err := src.Exists(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check %s: %w", key, err)
	}
	if !found {
		return nil, "", fmt.Errorf("%w: %s", ErrExportNotFound, key)
	}

	rc, err := src.Download(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if expectedSHA256 != "" {
		if err := checksum.VerifySHA256(bytes.NewReader(data), expectedSHA256); err != nil {
			return nil, sum, fmt.Errorf("%s: %w", key, err)
		}
	}

	records, err := Parse(data)
	if err != nil {
		return nil, sum, err
	}
	return records, sum, nil
}

// Snapshot writes every resource, oldest first, to key on dst in the export
// format Load reads back. An existing target is only replaced when overwrite
// is set.
func Snapshot(ctx context.Context, rows Lister, dst Destination, key string, overwrite bool) (*storage.UploadResult, int, error) {
	if !overwrite {
		found, err := dst.Exists(ctx, key)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to check %s: %w", key, err)
		}
		if found {
			return nil, 0, fmt.Errorf("%w: %s", ErrSnapshotExists, key)
		}
	}

	all, err := rows.GetAll(ctx, store.QueryOptions{OrderBy: models.ColCreatedAt})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list resources: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	res, err := dst.Upload(ctx, key, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return res, len(all), nil
}
