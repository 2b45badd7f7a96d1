package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/storage"
)

type storedBlob struct {
	content     []byte
	metadata    map[string]string
	contentType string
}

type blobServer struct {
	mu    sync.Mutex
	blobs map[string]*storedBlob // container/blob -> blob
}

// newTestStorage creates a storage pointed at an httptest server imitating
// enough of the Blob REST API for block blob upload, download and HEAD.
func newTestStorage(t *testing.T) (*AzureStorage, *blobServer) {
	t.Helper()

	bs := &blobServer{blobs: map[string]*storedBlob{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")

		bs.mu.Lock()
		defer bs.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for k, v := range r.Header {
				lk := strings.ToLower(k)
				if strings.HasPrefix(lk, "x-ms-meta-") && len(v) > 0 {
					meta[strings.TrimPrefix(lk, "x-ms-meta-")] = v[0]
				}
			}
			bs.blobs[key] = &storedBlob{
				content:     data,
				metadata:    meta,
				contentType: r.Header.Get("x-ms-blob-content-type"),
			}
			w.WriteHeader(http.StatusCreated)

		case http.MethodGet:
			b, ok := bs.blobs[key]
			if !ok {
				w.Header().Set("x-ms-error-code", "BlobNotFound")
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(b.content)))
			w.WriteHeader(http.StatusOK)
			w.Write(b.content)

		case http.MethodHead:
			b, ok := bs.blobs[key]
			if !ok {
				w.Header().Set("x-ms-error-code", "BlobNotFound")
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(b.content)))
			w.WriteHeader(http.StatusOK)

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New("exports", &config.AzureStorageConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() for mock blob server: %v", err)
	}
	return s, bs
}

func TestUploadDownloadAndExists(t *testing.T) {
	s, bs := newTestStorage(t)
	ctx := context.Background()
	data := []byte(`[{"name":"Go by Example"}]`)

	res, err := s.Upload(ctx, "backups/resources.json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if res.Size != int64(len(data)) {
		t.Fatalf("unexpected size: got %d want %d", res.Size, len(data))
	}
	if res.Key != "backups/resources.json" {
		t.Fatalf("unexpected key: %s", res.Key)
	}

	bs.mu.Lock()
	stored := bs.blobs["exports/backups/resources.json"]
	bs.mu.Unlock()
	if stored == nil {
		t.Fatalf("blob not stored under container path")
	}
	if stored.metadata["sha256"] != res.Checksum {
		t.Fatalf("sha256 metadata = %q, want %q", stored.metadata["sha256"], res.Checksum)
	}
	if stored.contentType != "application/json" {
		t.Fatalf("content type = %q, want application/json", stored.contentType)
	}

	rc, err := s.Download(ctx, "backups/resources.json")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Fatalf("download content mismatch: %q", string(got))
	}

	exists, err := s.Exists(ctx, "backups/resources.json")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if !exists {
		t.Fatalf("Exists = false, want true")
	}
}

func TestExists_NotFound(t *testing.T) {
	s, _ := newTestStorage(t)

	exists, err := s.Exists(context.Background(), "missing.json")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if exists {
		t.Fatalf("Exists = true for missing blob, want false")
	}
}

func TestDownload_NotFound(t *testing.T) {
	s, _ := newTestStorage(t)

	if _, err := s.Download(context.Background(), "missing.json"); err == nil {
		t.Fatalf("Download expected error for missing blob")
	}
}

// ---------------------------------------------------------------------------
// New(): constructor validation (no cloud connection required)
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		container string
		cfg       config.AzureStorageConfig
		wantErr   bool
	}{
		{name: "missing container", container: "", cfg: config.AzureStorageConfig{AccountName: "acct", AccountKey: "a2V5"}, wantErr: true},
		{name: "missing account name", container: "c", cfg: config.AzureStorageConfig{AccountKey: "a2V5"}, wantErr: true},
		{name: "missing account key", container: "c", cfg: config.AzureStorageConfig{AccountName: "acct"}, wantErr: true},
		{name: "shared key", container: "c", cfg: config.AzureStorageConfig{AccountName: "acct", AccountKey: "a2V5"}},
		{name: "sas endpoint", container: "c", cfg: config.AzureStorageConfig{Endpoint: "https://acct.blob.core.windows.net/?sv=2024&sig=x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.container, &tt.cfg)
			if tt.wantErr && err == nil {
				t.Error("New() = nil error, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("New() error: %v", err)
			}
		})
	}
}

func TestRegisteredAsAzblobScheme(t *testing.T) {
	s, key, err := storage.Open("azblob://backups/2024/resources.json", &config.StorageConfig{
		Azure: config.AzureStorageConfig{AccountName: "acct", AccountKey: "a2V5"},
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	as, ok := s.(*AzureStorage)
	if !ok {
		t.Fatalf("Open() = %T, want *AzureStorage", s)
	}
	if as.containerName != "backups" || key != "2024/resources.json" {
		t.Errorf("container, key = %q, %q", as.containerName, key)
	}
}
