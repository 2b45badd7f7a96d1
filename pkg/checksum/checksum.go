// Package checksum provides SHA-256 helpers for resource exports. Uploads
// record the digest of what they wrote, and the import tool can refuse a source
// whose digest does not match the one the operator expects.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MismatchError is returned by VerifySHA256 when the digests differ.
type MismatchError struct {
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected sha256 %s, got %s", e.Expected, e.Actual)
}

// CalculateSHA256 returns the lowercase hex SHA256 of everything read from reader.
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ParseSHA256 normalises an expected digest. It accepts a bare hex digest or
// a line of sha256sum output ("<digest>  <file>").
func ParseSHA256(s string) (string, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", errors.New("empty checksum")
	}
	digest := strings.ToLower(fields[0])
	if len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("invalid sha256 %q: want %d hex characters", fields[0], sha256.Size*2)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("invalid sha256 %q: %w", fields[0], err)
	}
	return digest, nil
}

// VerifySHA256 reads reader to the end and returns a *MismatchError when its
// digest differs from expected.
func VerifySHA256(reader io.Reader, expected string) error {
	want, err := ParseSHA256(expected)
	if err != nil {
		return err
	}
	actual, err := CalculateSHA256(reader)
	if err != nil {
		return err
	}
	if actual != want {
		return &MismatchError{Expected: want, Actual: actual}
	}
	return nil
}
