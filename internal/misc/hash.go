package misc

import (
	"crypto/sha256"
	"encoding/hex"
)

// CacheKey hashes an arbitrary logical lookup (URL path, query, tag filter)
// into a stable key safe for use in key-value stores and file names.
func CacheKey(lookup string) string {
	sum := sha256.Sum256([]byte(lookup))
	return hex.EncodeToString(sum[:])
}
