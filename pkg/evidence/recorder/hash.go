package recorder

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxHashSize caps how many bytes of a text are hashed.
const MaxHashSize = 1024 * 1024

// HashText returns the hex SHA-256 of text, or "" for empty text. Only the
// first MaxHashSize bytes are hashed.
func HashText(text string) string {
	if text == "" {
		return ""
	}
	b := []byte(text)
	if len(b) > MaxHashSize {
		b = b[:MaxHashSize]
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashCredential fingerprints a caller credential so records can be
// grouped by key without storing it.
func HashCredential(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return "sha256:" + hex.EncodeToString(sum[:8])
}
