package store

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tokenSuffix names the sidecar artifact holding a record's delete token.
const tokenSuffix = ".token"

// tokenBytes gives 256 bits of entropy, well above the 128-bit floor.
const tokenBytes = 32

// TokenStore issues and verifies per-record delete capabilities. A token is
// returned exactly once, at upload time; afterwards it exists only in the
// sidecar file and in whatever the uploader kept.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a TokenStore rooted at dir.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// Issue generates a random URL-safe token for name and persists it as the
// record's sidecar artifact.
func (t *TokenStore) Issue(name string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(t.sidecarPath(name), []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	return token, nil
}

// Verify reports whether supplied matches the stored token for name. A
// record without a sidecar is never deletable through the protocol, so a
// missing sidecar verifies false. Comparison is constant-time.
func (t *TokenStore) Verify(name, supplied string) bool {
	stored, err := os.ReadFile(t.sidecarPath(name))
	if err != nil {
		return false
	}
	expected := strings.TrimSpace(string(stored))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// Remove deletes the sidecar for name. An already-missing sidecar is not an
// error: the sweeper and explicit deletes may race on the same record.
func (t *TokenStore) Remove(name string) error {
	err := os.Remove(t.sidecarPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (t *TokenStore) sidecarPath(name string) string {
	return filepath.Join(t.dir, name+tokenSuffix)
}

// isTokenSidecar reports whether a directory entry is a token artifact.
func isTokenSidecar(name string) bool {
	return strings.HasSuffix(name, tokenSuffix)
}
