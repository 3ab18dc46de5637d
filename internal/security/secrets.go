package security

import (
	"errors"
	"os"
	"strings"
)

// ErrInvalidSecret is returned when a signing secret is empty or unreadable.
var ErrInvalidSecret = errors.New("invalid secret")

// fileSecretPrefix marks a secret value that should be read from a file (e.g. a mounted Kubernetes secret).
const fileSecretPrefix = "file:"

// LoadSecret returns the signing secret for s. If s starts with "file:", the rest is
// treated as a path and the trimmed file content is returned; otherwise s itself is used.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if path, ok := strings.CutPrefix(s, fileSecretPrefix); ok {
		b, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return nil, err
		}
		secret := strings.TrimSpace(string(b))
		if secret == "" {
			return nil, ErrInvalidSecret
		}
		return []byte(secret), nil
	}
	return []byte(s), nil
}
