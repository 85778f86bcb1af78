// Package identity derives the content-based identity of a template document.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrEmptyContent = errors.New("cannot identify empty content")

// Hash returns the hex SHA-256 digest of everything read from r.
// The file name plays no part, so a renamed copy keeps its identity.
func Hash(r io.Reader) (string, error) {
	hash := sha256.New()
	n, err := io.Copy(hash, r)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	if n == 0 {
		return "", ErrEmptyContent
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashBytes hashes an in-memory buffer.
func HashBytes(b []byte) (string, error) {
	return Hash(bytes.NewReader(b))
}

// HashFile hashes the file at path.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return Hash(file)
}
