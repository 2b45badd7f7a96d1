// factory.go implements the backend registry, mapping URI schemes (file, s3,
// gs, azblob) to constructor functions and resolving locations with Open.
package storage

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/resourcehub/resourcehub/internal/config"
)

// FactoryFunc creates a backend for one bucket. Local storage receives an
// empty bucket.
type FactoryFunc func(bucket string, cfg *config.StorageConfig) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a backend factory for a URI scheme.
func Register(scheme string, factory FactoryFunc) {
	factories[scheme] = factory
}

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == "file" {
		return l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseLocation splits uri into scheme, bucket and key. A string without a
// scheme is a local path.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, errors.New("empty storage location")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage location %q: %w", uri, err)
	}
	if u.Scheme == "file" {
		if u.Path == "" {
			return Location{}, fmt.Errorf("invalid storage location %q: missing path", uri)
		}
		return Location{Scheme: "file", Key: u.Path}, nil
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("invalid storage location %q: want %s://bucket/key", uri, u.Scheme)
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
}

// Open resolves uri to a backend and the object key within it.
func Open(uri string, cfg *config.StorageConfig) (Storage, string, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, "", err
	}
	factory, ok := factories[loc.Scheme]
	if !ok {
		return nil, "", fmt.Errorf("unsupported storage scheme: %s (must be one of %s)", loc.Scheme, strings.Join(Schemes(), ", "))
	}
	if cfg == nil {
		cfg = &config.StorageConfig{}
	}
	s, err := factory(loc.Bucket, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s storage: %w", loc.Scheme, err)
	}
	return s, loc.Key, nil
}

// Schemes returns the registered schemes in sorted order.
func Schemes() []string {
	schemes := make([]string, 0, len(factories))
	for s := range factories {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
