package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/resourcehub/resourcehub/internal/storage"
)

// newTestStorage creates a LocalStorage backed by a temporary directory.
func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal("New:", err)
	}
	return s
}

func TestNew_CreatesDirectory(t *testing.T) {
	subDir := filepath.Join(t.TempDir(), "a", "b", "c")
	if _, err := New(subDir); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(subDir); os.IsNotExist(err) {
		t.Error("New() did not create base directory")
	}
}

func TestNew_EmptyBaseUsesWorkingDirectory(t *testing.T) {
	chdir(t, t.TempDir())
	s, err := New("")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := s.Upload(context.Background(), "export.json", strings.NewReader("[]")); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if _, err := os.Stat("export.json"); err != nil {
		t.Errorf("file not written to working directory: %v", err)
	}
}

func TestUpload(t *testing.T) {
	s := newTestStorage(t)

	content := "hello, world"
	result, err := s.Upload(context.Background(), "backups/hello.json", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if result.Key != "backups/hello.json" {
		t.Errorf("Key = %q, want backups/hello.json", result.Key)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
	// echo -n "hello, world" | sha256sum
	if result.Checksum != "09ca7e4eaa6e8ae9c7d261167129184883644d07dfba7cbfbc4c8a2e08360d5b" {
		t.Errorf("Checksum = %q", result.Checksum)
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, "backups", "hello.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != content {
		t.Errorf("file content = %q, want %q", data, content)
	}
}

func TestUpload_ReplacesExistingFile(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "r.json", strings.NewReader("first version")); err != nil {
		t.Fatal("Upload:", err)
	}
	if _, err := s.Upload(ctx, "r.json", strings.NewReader("second")); err != nil {
		t.Fatal("Upload:", err)
	}

	data, _ := os.ReadFile(filepath.Join(s.basePath, "r.json"))
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
	entries, _ := os.ReadDir(s.basePath)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (no leftover temp files)", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestUpload_ReadErrorKeepsExistingFile(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, "r.json", strings.NewReader("keep me")); err != nil {
		t.Fatal("Upload:", err)
	}
	if _, err := s.Upload(ctx, "r.json", failingReader{}); err == nil {
		t.Fatal("Upload() = nil error, want read error")
	}

	data, _ := os.ReadFile(filepath.Join(s.basePath, "r.json"))
	if string(data) != "keep me" {
		t.Errorf("content = %q, want original file untouched", data)
	}
}

func TestDownload(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	want := "download me"
	if _, err := s.Upload(ctx, "dl.json", strings.NewReader(want)); err != nil {
		t.Fatal("Upload:", err)
	}

	rc, err := s.Download(ctx, "dl.json")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != want {
		t.Errorf("Download() content = %q, want %q", string(data), want)
	}
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Download(context.Background(), "nonexistent.json")
	if err == nil {
		t.Error("Download() expected error for missing file, got nil")
	}
}

func TestExists(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "no-such.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("Exists() = true for non-existent file, want false")
	}

	if _, err := s.Upload(ctx, "yes.json", strings.NewReader("data")); err != nil {
		t.Fatal("Upload:", err)
	}
	ok, err = s.Exists(ctx, "yes.json")
	if err != nil {
		t.Fatalf("Exists() error after upload: %v", err)
	}
	if !ok {
		t.Error("Exists() = false for existing file, want true")
	}
}

func TestRegisteredAsFileScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, key, err := storage.Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Fatalf("Open() = %T, want *LocalStorage", s)
	}
	ok, err := s.Exists(context.Background(), key)
	if err != nil || !ok {
		t.Errorf("Exists(%q) = %v, %v; want true", key, ok, err)
	}
}

// chdir changes the working directory to dir for the duration of the test,
// restoring the previous directory on cleanup (equivalent of testing.T.Chdir,
// which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory %s: %v", prev, err)
		}
	})
}
