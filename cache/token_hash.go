package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes an opaque token handle before it is used as a storage
// key. The raw handle never reaches the backing store.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
