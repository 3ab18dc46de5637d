package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenFingerprint returns a short SHA-256 based identifier for token, safe to put in logs
// and audit metadata. The raw token must never be logged.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:8])
}

// RefreshTokenEqual performs a constant-time comparison of the presented refresh token
// with the stored one. An empty stored value never matches.
func RefreshTokenEqual(presented, stored string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
