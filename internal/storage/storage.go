// Package storage reads and writes resource exports on object stores so the
// import tool can take its input from, and snapshot the table to, a bucket as
// well as the local disk.
//
// A location is a URI whose scheme selects the backend:
//
//	s3://bucket/exports/resources.json
//	gs://bucket/exports/resources.json
//	azblob://container/exports/resources.json
//	file:///var/backups/resources.json   (or a plain path)
//
// Backends register themselves from an init() function in their own package:
//
//	func init() {
//	    storage.Register("s3", func(bucket string, cfg *config.StorageConfig) (storage.Storage, error) {
//	        return New(bucket, &cfg.S3)
//	    })
//	}
//
// so a binary only supports the schemes it blank-imports.
package storage

import (
	"context"
	"io"
)

// Storage is an object store scoped to one bucket or container.
type Storage interface {
	// Upload stores the content of reader at key and returns its checksum.
	Upload(ctx context.Context, key string, reader io.Reader) (*UploadResult, error)

	// Download returns the object at key. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	// Key is the object key within the bucket
	Key string

	// Size is the object size in bytes
	Size int64

	// Checksum is the hex SHA256 of the object contents
	Checksum string
}
