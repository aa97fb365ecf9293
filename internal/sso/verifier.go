// Package sso verifies the signed, single-use bootstrap tokens the billing authority issues.
package sso

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"

	"customer-panel/backend/internal/security"
)

var (
	// ErrInvalidToken is returned for any signature, claim or freshness failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotConfigured is returned when no key material was configured.
	ErrNotConfigured = errors.New("token verification not configured")
	// ErrInvalidRedirect is returned when the return path is not a same-origin relative path.
	ErrInvalidRedirect = errors.New("invalid return path")
)

const (
	DefaultLeeway = 10 * time.Second
	DefaultMaxAge = 90 * time.Second
)

// Options configures a Verifier. Exactly one of PublicKey and HMACSecret may be set;
// with neither, every Verify fails with ErrNotConfigured.
type Options struct {
	// PublicKey is a PEM public key (Ed25519, RSA or ECDSA P-256), inline or a file path.
	PublicKey string
	// HMACSecret is the shared HS256 secret.
	HMACSecret string
	Issuer     string
	// Audience is enforced only when non-empty.
	Audience string
	// Leeway is the clock tolerance on exp, iat and nbf. It is used as given, so the zero value means no
	// tolerance; a negative value selects DefaultLeeway.
	Leeway time.Duration
	// MaxAge bounds exp - iat; zero or negative selects DefaultMaxAge.
	MaxAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// keyScheme binds the only accepted signing algorithm to its verification key.
type keyScheme struct {
	alg string
	key any
}

// Verifier checks bootstrap tokens. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	scheme   *keyScheme
	issuer   string
	audience string
	leeway   time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewVerifier resolves the key scheme once. It fails when both schemes are configured or the key cannot be parsed.
func NewVerifier(opts Options) (*Verifier, error) {
	scheme, err := resolveScheme(opts.PublicKey, opts.HMACSecret)
	if err != nil {
		return nil, err
	}
	v := &Verifier{
		scheme:   scheme,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
		maxAge:   opts.MaxAge,
		now:      opts.Now,
	}
	if v.maxAge <= 0 {
		v.maxAge = DefaultMaxAge
	}
	if v.leeway < 0 {
		v.leeway = DefaultLeeway
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

func resolveScheme(publicKey, secret string) (*keyScheme, error) {
	publicKey = strings.TrimSpace(publicKey)
	hasSecret := strings.TrimSpace(secret) != ""
	switch {
	case publicKey != "" && hasSecret:
		return nil, errors.New("sso: configure either a public key or an HMAC secret, not both")
	case publicKey != "":
		pub, err := security.ParsePublicKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("sso: public key: %w", err)
		}
		return &keyScheme{alg: security.KeyAlg(pub), key: pub}, nil
	case hasSecret:
		return &keyScheme{alg: jwt.SigningMethodHS256.Alg(), key: []byte(secret)}, nil
	default:
		return nil, nil
	}
}

// Configured reports whether key material is present.
func (v *Verifier) Configured() bool {
	return v.scheme != nil
}

// Verify checks the token's signature, algorithm, issuer, optional audience, freshness, max age and
// required claims, then the return path. It has no side effects.
func (v *Verifier) Verify(token string) (*BootstrapClaims, error) {
	if v.scheme == nil {
		return nil, ErrNotConfigured
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.scheme.alg}),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var wc wireClaims
	parsed, err := jwt.ParseWithClaims(token, &wc, func(*jwt.Token) (any, error) {
		return v.scheme.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	switch {
	case wc.IssuedAt == nil:
		return nil, fmt.Errorf("%w: missing iat", ErrInvalidToken)
	case wc.Subject == "":
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	case wc.ID == "":
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	case wc.serviceID() == "":
		return nil, fmt.Errorf("%w: missing service_id", ErrInvalidToken)
	case wc.returnPath() == "":
		return nil, fmt.Errorf("%w: missing return_to", ErrInvalidToken)
	}

	issuedAt, expiresAt := wc.IssuedAt.Time, wc.ExpiresAt.Time
	if expiresAt.Sub(issuedAt) > v.maxAge {
		return nil, fmt.Errorf("%w: lifetime exceeds %s", ErrInvalidToken, v.maxAge)
	}
	if err := ValidateReturnPath(wc.returnPath()); err != nil {
		return nil, err
	}

	return &BootstrapClaims{
		Issuer:     wc.Issuer,
		Subject:    wc.Subject,
		Audience:   []string(wc.Audience),
		ServiceID:  wc.serviceID(),
		TokenID:    wc.ID,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		ReturnPath: wc.returnPath(),
	}, nil
}

// ValidateReturnPath accepts only same-origin relative paths: no scheme, no host, a leading "/" and
// neither "//" nor "/\" at the start. Control characters and whitespace are rejected because browsers
// strip some of them before resolving the location.
func ValidateReturnPath(p string) error {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return ErrInvalidRedirect
	}
	if strings.IndexFunc(p, func(r rune) bool { return unicode.IsControl(r) || unicode.IsSpace(r) }) >= 0 {
		return ErrInvalidRedirect
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return ErrInvalidRedirect
	}
	return nil
}
