// Package checksum computes the content digests used as document versions.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats a digest as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromIfMatch extracts the digest from an If-Match header value. Weak tags
// are accepted; "*" and an empty header yield "", meaning any version.
func FromIfMatch(header string) string {
	v := strings.TrimSpace(header)
	if v == "*" {
		return ""
	}
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}
