package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint hashes the client-supplied idempotency key. Only the hash is
// stored, so raw keys never land in the database.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
