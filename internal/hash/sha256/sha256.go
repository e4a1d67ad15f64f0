// Package sha256 digests catalog API response bodies into ETags.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces hex SHA-256 digests of encoded responses.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for data, quoted as HTTP requires.
func (h *Hasher) ETag(data []byte) string {
	return `"` + h.Hash(data)[:32] + `"`
}
