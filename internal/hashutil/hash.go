// Package hashutil computes the message hash used as the idempotency and
// join key for notes. The algorithm is a fixed configuration constant shared
// with every API client: SHA-256 over the raw UTF-8 transcript text, encoded
// as lowercase hex. Changing it invalidates every stored note, so both ends
// must move together.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// MessageHash returns the hex-encoded SHA-256 digest of text.
func MessageHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
