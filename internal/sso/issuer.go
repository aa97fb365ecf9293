package sso

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints bootstrap tokens the way the billing authority does. The panel itself never issues
// tokens in production; Issuer backs the seed tool and tests.
type Issuer struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewKeyIssuer returns an Issuer that signs with priv (Ed25519, RSA or ECDSA P-256).
func NewKeyIssuer(priv crypto.Signer, issuer, audience string, ttl time.Duration) (*Issuer, error) {
	var method jwt.SigningMethod
	switch priv.Public().(type) {
	case ed25519.PublicKey:
		method = jwt.SigningMethodEdDSA
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, errors.New("sso: unsupported signing key")
	}
	return &Issuer{method: method, key: priv, issuer: issuer, audience: audience, ttl: ttl, now: time.Now}, nil
}

// NewHMACIssuer returns an Issuer that signs with HS256.
func NewHMACIssuer(secret, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{method: jwt.SigningMethodHS256, key: []byte(secret), issuer: issuer, audience: audience, ttl: ttl, now: time.Now}
}

// Issue mints a fresh token for subject and serviceID with a random jti. Returns the token and its claims.
func (i *Issuer) Issue(subject, serviceID, returnPath string) (string, *BootstrapClaims, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", nil, err
	}
	now := i.now().UTC().Truncate(time.Second)
	c := &BootstrapClaims{
		Issuer:     i.issuer,
		Subject:    subject,
		ServiceID:  serviceID,
		TokenID:    jti,
		IssuedAt:   now,
		ExpiresAt:  now.Add(i.ttl),
		ReturnPath: returnPath,
	}
	if i.audience != "" {
		c.Audience = []string{i.audience}
	}
	token, err := i.Sign(c)
	if err != nil {
		return "", nil, err
	}
	return token, c, nil
}

// Sign encodes c exactly as given. Zero times are left out of the payload.
func (i *Issuer) Sign(c *BootstrapClaims) (string, error) {
	wc := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.Issuer,
			Subject:  c.Subject,
			Audience: jwt.ClaimStrings(c.Audience),
			ID:       c.TokenID,
		},
		ServiceID: flexString(c.ServiceID),
		ReturnTo:  c.ReturnPath,
	}
	if !c.IssuedAt.IsZero() {
		wc.IssuedAt = jwt.NewNumericDate(c.IssuedAt)
	}
	if !c.ExpiresAt.IsZero() {
		wc.ExpiresAt = jwt.NewNumericDate(c.ExpiresAt)
	}
	return jwt.NewWithClaims(i.method, wc).SignedString(i.key)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
