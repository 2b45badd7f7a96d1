package checksum

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

const (
	helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestCalculateSHA256(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// echo -n "hello" | sha256sum
		{name: "hello", input: "hello", want: helloSHA},
		{name: "empty string", input: "", want: emptySHA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSHA256(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("CalculateSHA256() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CalculateSHA256(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("binary data", func(t *testing.T) {
		got, err := CalculateSHA256(bytes.NewReader([]byte{0x00, 0x01, 0xFF}))
		if err != nil {
			t.Fatalf("CalculateSHA256() error: %v", err)
		}
		if len(got) != 64 {
			t.Errorf("CalculateSHA256() returned %d-char hex string, want 64", len(got))
		}
	})

	t.Run("read error is propagated", func(t *testing.T) {
		if _, err := CalculateSHA256(errReader{}); err == nil {
			t.Error("CalculateSHA256() expected error from failing reader, got nil")
		}
	})
}

func TestParseSHA256(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare digest", input: helloSHA, want: helloSHA},
		{name: "uppercase", input: strings.ToUpper(helloSHA), want: helloSHA},
		{name: "sha256sum line", input: helloSHA + "  learning-resources.json\n", want: helloSHA},
		{name: "surrounding space", input: "  " + helloSHA + " ", want: helloSHA},
		{name: "empty", input: "   ", wantErr: true},
		{name: "too short", input: "abc123", wantErr: true},
		{name: "not hex", input: strings.Repeat("zz", 32), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSHA256(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseSHA256(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSHA256(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSHA256(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVerifySHA256(t *testing.T) {
	t.Run("matching checksum", func(t *testing.T) {
		if err := VerifySHA256(strings.NewReader("hello"), helloSHA); err != nil {
			t.Errorf("VerifySHA256() error: %v", err)
		}
	})

	t.Run("sha256sum output is accepted", func(t *testing.T) {
		if err := VerifySHA256(strings.NewReader(""), emptySHA+"  empty.json"); err != nil {
			t.Errorf("VerifySHA256() error: %v", err)
		}
	})

	t.Run("mismatch returns MismatchError", func(t *testing.T) {
		err := VerifySHA256(strings.NewReader("hello"), emptySHA)
		var mismatch *MismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("VerifySHA256() error = %v, want *MismatchError", err)
		}
		if mismatch.Expected != emptySHA || mismatch.Actual != helloSHA {
			t.Errorf("MismatchError = %+v", mismatch)
		}
	})

	t.Run("invalid expected digest", func(t *testing.T) {
		if err := VerifySHA256(strings.NewReader("hello"), "nope"); err == nil {
			t.Error("VerifySHA256() expected error for invalid digest, got nil")
		}
	})

	t.Run("read error is propagated", func(t *testing.T) {
		if err := VerifySHA256(errReader{}, helloSHA); err == nil {
			t.Error("VerifySHA256() expected error from failing reader, got nil")
		}
	})
}

// errReader is an io.Reader that always returns an error.
type errReader struct{}

func (errReader) Read(_ []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
