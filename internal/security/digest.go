package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SHA256Hex returns the hex encoded SHA-256 of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func SHA256HexOfString(s string) string {
	return SHA256Hex([]byte(s))
}

// KeyMatches compares a presented secret with the expected one in constant time. An
// empty expected key never matches.
func KeyMatches(presented, expected string) bool {
	if expected == "" {
		return false
	}
	a, b := sha256.Sum256([]byte(presented)), sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
