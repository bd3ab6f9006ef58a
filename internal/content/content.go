// Package content implements the content-addressable blob store used for
// document bodies and article texts.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Store defines the content-addressable store.
// Blobs are write-once: Put never overwrites an existing digest.
type Store interface {
	// Put persists text under its digest and returns the digest
	Put(text string) (string, error)

	// Get returns the text stored under digest or a *model.NotFoundError
	Get(digest string) (string, error)
}

// Normalize unifies line endings to "\n"
func Normalize(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Digest returns the hex SHA-256 of the normalized UTF-8 bytes of text
func Digest(text string) string {
	hash := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(hash[:])
}

// ValidDigest reports whether s looks like a digest produced by Digest
func ValidDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
