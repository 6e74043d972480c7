package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
)

// HeaderProxyKey carries the shared secret on inbound requests.
const HeaderProxyKey = "X-Proxy-Key"

// Authenticator checks callers against a single shared secret.
// Only the SHA-256 digest of the secret is kept in memory.
type Authenticator struct {
	keyHash  string
	disabled bool
}

// NewAuthenticator creates an authenticator from a clear-text secret or a
// precomputed SHA-256 hex digest. The digest wins when both are set.
func NewAuthenticator(secret, secretHash string) *Authenticator {
	a := &Authenticator{keyHash: strings.ToLower(strings.TrimSpace(secretHash))}
	if a.keyHash == "" && secret != "" {
		a.keyHash = HashAPIKey(secret)
	}
	return a
}

// Disabled returns an authenticator that admits every caller.
func Disabled() *Authenticator {
	return &Authenticator{disabled: true}
}

// Configured reports whether a secret is available to compare against.
func (a *Authenticator) Configured() bool {
	return a.disabled || a.keyHash != ""
}

// Validate checks the presented secret. The error is always an
// authentication *domain.APIError.
func (a *Authenticator) Validate(secret string) error {
	if a.disabled {
		return nil
	}
	if a.keyHash == "" {
		return domain.ErrAuthentication("shared secret not configured")
	}
	if secret == "" {
		return domain.ErrAuthentication("missing proxy key")
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(HashAPIKey(secret)), []byte(a.keyHash)) != 1 {
		return domain.ErrAuthentication("invalid proxy key")
	}
	return nil
}

// ExtractSecret reads the shared secret from X-Proxy-Key, falling back to
// an "Authorization: Bearer <secret>" header.
func ExtractSecret(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderProxyKey)); key != "" {
		return key
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// HashAPIKey creates a SHA-256 hash of a secret for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
