package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// OpaqueTokenBytes is the entropy of tokens minted by NewOpaqueToken (256 bits).
const OpaqueTokenBytes = 32

// NewOpaqueToken returns OpaqueTokenBytes of crypto/rand output, base64url-encoded without padding.
func NewOpaqueToken() (string, error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns a SHA-256 hash of the bearer token string, hex-encoded.
// Used for storing and looking up bearer tokens without storing the raw token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
