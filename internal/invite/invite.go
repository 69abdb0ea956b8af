// Package invite issues group invite codes.
package invite

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// codeBytes gives 128 bits of entropy.
const codeBytes = 16

// CodeLength is the length of an encoded invite code.
var CodeLength = base64.RawURLEncoding.EncodedLen(codeBytes)

// Generate returns a fresh URL-safe invite code.
func Generate() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Valid reports whether s has the shape of a code returned by Generate.
func Valid(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil && len(b) == codeBytes
}
