package compiler

import (
	"crypto/sha1"
	"encoding/hex"
)

// Hash returns the hex SHA-1 digest of a compiled model. It is the cache key
// for Runs, so it must only ever see the model text.
func Hash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
