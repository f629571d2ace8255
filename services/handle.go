package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewHandle returns an opaque handle for codes, refresh tokens and
// reference tokens: 32 bytes of entropy, URL-safe without padding.
func NewHandle() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
