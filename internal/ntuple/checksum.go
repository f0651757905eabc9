package ntuple

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Checksum computes the BLAKE3 hash of a file
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum verifies a file against an expected BLAKE3 hash
func VerifyChecksum(path, expected string) error {
	actual, err := Checksum(path)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actual != expected {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, filepath.Base(path), expected, actual)
	}
	return nil
}
