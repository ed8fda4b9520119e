// Package invite generates short human-shareable room invite codes.
package invite

import (
	"crypto/rand"
	"fmt"
)

const (
	// Alphabet excludes nothing: codes are compared case-insensitively and
	// stored upper-cased, so ambiguous glyphs are acceptable.
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the fixed invite code length.
	CodeLength = 6
)

// NewCode returns a random 6-character uppercase alphanumeric code.
// Uniqueness is the caller's responsibility (regenerate on collision).
func NewCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
