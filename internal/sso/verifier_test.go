package sso

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"customer-panel/backend/internal/security"
)

const testSecret = "billing-shared-secret"

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func newHMACVerifier(t *testing.T, now int64, mutate func(*Options)) *Verifier {
	t.Helper()
	opts := Options{
		HMACSecret: testSecret,
		Issuer:     "whmcs",
		Leeway:     DefaultLeeway,
		MaxAge:     DefaultMaxAge,
		Now:        fixedClock(now),
	}
	if mutate != nil {
		mutate(&opts)
	}
	v, err := NewVerifier(opts)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func baseClaims() *BootstrapClaims {
	return &BootstrapClaims{
		Issuer:     "whmcs",
		Subject:    "u1",
		ServiceID:  "s1",
		TokenID:    "abc",
		IssuedAt:   time.Unix(1000, 0),
		ExpiresAt:  time.Unix(1060, 0),
		ReturnPath: "/dashboard",
	}
}

func signHMAC(t *testing.T, c *BootstrapClaims) string {
	t.Helper()
	tok, err := NewHMACIssuer(testSecret, "whmcs", "", time.Minute).Sign(c)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func signMap(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return tok
}

func TestVerify_ValidHMAC(t *testing.T) {
	v := newHMACVerifier(t, 1010, nil)
	got, err := v.Verify(signHMAC(t, baseClaims()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Subject != "u1" || got.ServiceID != "s1" || got.TokenID != "abc" || got.ReturnPath != "/dashboard" {
		t.Errorf("claims = %+v", got)
	}
	if got.IssuedAt.Unix() != 1000 || got.ExpiresAt.Unix() != 1060 {
		t.Errorf("times = %v / %v", got.IssuedAt, got.ExpiresAt)
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	v, err := NewVerifier(Options{Issuer: "whmcs"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if v.Configured() {
		t.Error("Configured should be false without key material")
	}
	if _, err := v.Verify("anything"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Verify error = %v, want ErrNotConfigured", err)
	}
}

func TestNewVerifier_BothSchemes(t *testing.T) {
	_, pubPEM, err := security.NewTestRSAKeyPair()
	if err != nil {
		t.Fatalf("NewTestRSAKeyPair: %v", err)
	}
	if _, err := NewVerifier(Options{PublicKey: pubPEM, HMACSecret: "x", Issuer: "whmcs"}); err == nil {
		t.Error("NewVerifier should reject both schemes")
	}
	if _, err := NewVerifier(Options{PublicKey: "-----BEGIN PUBLIC KEY-----\nbad\n-----END PUBLIC KEY-----"}); err == nil {
		t.Error("NewVerifier should reject an unparseable key")
	}
}

func TestVerify_MaxAge(t *testing.T) {
	v := newHMACVerifier(t, 50, nil)

	tooLong := baseClaims()
	tooLong.IssuedAt, tooLong.ExpiresAt = time.Unix(0, 0), time.Unix(91, 0)
	if _, err := v.Verify(signHMAC(t, tooLong)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("iat=0 exp=91: error = %v, want ErrInvalidToken", err)
	}

	atLimit := baseClaims()
	atLimit.IssuedAt, atLimit.ExpiresAt = time.Unix(0, 0), time.Unix(90, 0)
	if _, err := v.Verify(signHMAC(t, atLimit)); err != nil {
		t.Errorf("iat=0 exp=90 should verify: %v", err)
	}
}

func TestVerify_Freshness(t *testing.T) {
	testCases := []struct {
		name    string
		now     int64
		wantErr bool
	}{
		{"within window", 1030, false},
		{"expired within leeway", 1065, false},
		{"expired beyond leeway", 1071, true},
		{"issued in future within leeway", 995, false},
		{"issued in future beyond leeway", 985, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := newHMACVerifier(t, tc.now, nil)
			_, err := v.Verify(signHMAC(t, baseClaims()))
			if (err != nil) != tc.wantErr {
				t.Errorf("Verify error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerify_RequiredClaims(t *testing.T) {
	full := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": "whmcs", "sub": "u1", "jti": "abc", "iat": 1000, "exp": 1060,
			"service_id": "s1", "return_to": "/dashboard",
		}
	}
	for _, missing := range []string{"iss", "sub", "jti", "iat", "exp", "service_id", "return_to"} {
		t.Run(missing, func(t *testing.T) {
			claims := full()
			delete(claims, missing)
			v := newHMACVerifier(t, 1010, nil)
			if _, err := v.Verify(signMap(t, claims)); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("missing %s: error = %v, want ErrInvalidToken", missing, err)
			}
		})
	}
}

func TestVerify_ClaimAliasesAndNumericServiceID(t *testing.T) {
	v := newHMACVerifier(t, 1010, nil)
	got, err := v.Verify(signMap(t, jwt.MapClaims{
		"iss": "whmcs", "sub": "u1", "jti": "abc", "iat": 1000, "exp": 1060,
		"serviceId": 42, "returnPath": "/services/42",
	}))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ServiceID != "42" || got.ReturnPath != "/services/42" {
		t.Errorf("claims = %+v", got)
	}

	if _, err := v.Verify(signMap(t, jwt.MapClaims{
		"iss": "whmcs", "sub": "u1", "jti": "abc", "iat": 1000, "exp": 1060,
		"service_id": true, "return_to": "/",
	})); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("boolean service_id: error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_IssuerAndAudience(t *testing.T) {
	c := baseClaims()
	c.Issuer = "someone-else"
	if _, err := newHMACVerifier(t, 1010, nil).Verify(signHMAC(t, c)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong issuer: error = %v, want ErrInvalidToken", err)
	}

	withAud := func(o *Options) { o.Audience = "panel" }
	if _, err := newHMACVerifier(t, 1010, withAud).Verify(signHMAC(t, baseClaims())); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("missing audience: error = %v, want ErrInvalidToken", err)
	}
	c = baseClaims()
	c.Audience = []string{"panel"}
	if _, err := newHMACVerifier(t, 1010, withAud).Verify(signHMAC(t, c)); err != nil {
		t.Errorf("matching audience: %v", err)
	}
	if _, err := newHMACVerifier(t, 1010, nil).Verify(signHMAC(t, c)); err != nil {
		t.Errorf("audience present but not configured should verify: %v", err)
	}
}

func TestVerify_WrongSecretAndGarbage(t *testing.T) {
	v := newHMACVerifier(t, 1010, nil)
	other, err := NewHMACIssuer("other-secret", "whmcs", "", time.Minute).Sign(baseClaims())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	for name, tok := range map[string]string{"wrong secret": other, "garbage": "not.a.jwt", "empty": ""} {
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestVerify_RS256(t *testing.T) {
	signer, pubPEM, err := security.NewTestRSAKeyPair()
	if err != nil {
		t.Fatalf("NewTestRSAKeyPair: %v", err)
	}
	v, err := NewVerifier(Options{PublicKey: pubPEM, Issuer: "whmcs", Leeway: DefaultLeeway, Now: fixedClock(1010)})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	iss, err := NewKeyIssuer(signer, "whmcs", "", time.Minute)
	if err != nil {
		t.Fatalf("NewKeyIssuer: %v", err)
	}
	tok, err := iss.Sign(baseClaims())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(tok); err != nil {
		t.Fatalf("Verify RS256: %v", err)
	}

	// An HS256 token signed with the public key bytes must not pass as RS256.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "whmcs", "sub": "u1", "jti": "abc", "iat": 1000, "exp": 1060,
		"service_id": "s1", "return_to": "/dashboard",
	}).SignedString([]byte(pubPEM))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := v.Verify(forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("algorithm confusion: error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_EdDSAAndES256(t *testing.T) {
	_, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519: %v", err)
	}
	ecPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa: %v", err)
	}

	testCases := []struct {
		name   string
		signer crypto.Signer
	}{
		{"EdDSA", edPriv},
		{"ES256", ecPriv},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			der, err := x509.MarshalPKIXPublicKey(tc.signer.Public())
			if err != nil {
				t.Fatalf("MarshalPKIXPublicKey: %v", err)
			}
			pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
			v, err := NewVerifier(Options{PublicKey: pubPEM, Issuer: "whmcs", Now: fixedClock(1010)})
			if err != nil {
				t.Fatalf("NewVerifier: %v", err)
			}
			iss, err := NewKeyIssuer(tc.signer, "whmcs", "", time.Minute)
			if err != nil {
				t.Fatalf("NewKeyIssuer: %v", err)
			}
			tok, err := iss.Sign(baseClaims())
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if _, err := v.Verify(tok); err != nil {
				t.Errorf("Verify %s: %v", tc.name, err)
			}
		})
	}
}

func TestVerify_ReturnPath(t *testing.T) {
	testCases := []struct {
		path    string
		wantErr error
	}{
		{"/dashboard", nil},
		{"/services/1?tab=dns#records", nil},
		{"http://evil.example/x", ErrInvalidRedirect},
		{"//evil.example", ErrInvalidRedirect},
		{`/\evil.example`, ErrInvalidRedirect},
		{"dashboard", ErrInvalidRedirect},
		{"javascript:alert(1)", ErrInvalidRedirect},
		{"/\t/evil.example", ErrInvalidRedirect},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			c := baseClaims()
			c.ReturnPath = tc.path
			_, err := newHMACVerifier(t, 1010, nil).Verify(signHMAC(t, c))
			if tc.wantErr == nil && err != nil {
				t.Fatalf("Verify(%q): %v", tc.path, err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("Verify(%q) error = %v, want %v", tc.path, err, tc.wantErr)
			}
		})
	}
}

func TestIssuer_Issue(t *testing.T) {
	iss := NewHMACIssuer(testSecret, "whmcs", "panel", 60*time.Second)
	iss.now = fixedClock(2000)
	tok, claims, err := iss.Issue("u9", "s9", "/")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if claims.TokenID == "" || claims.ExpiresAt.Sub(claims.IssuedAt) != time.Minute {
		t.Errorf("claims = %+v", claims)
	}
	v := newHMACVerifier(t, 2005, func(o *Options) { o.Audience = "panel" })
	got, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.TokenID != claims.TokenID {
		t.Errorf("TokenID = %q, want %q", got.TokenID, claims.TokenID)
	}
}

func TestNewVerifier_LeewayOption(t *testing.T) {
	// exp is 1060; the clock reads 1065.
	testCases := []struct {
		name    string
		leeway  time.Duration
		wantErr bool
	}{
		{"zero means none", 0, true},
		{"negative selects default", -1, false},
		{"explicit", 6 * time.Second, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := newHMACVerifier(t, 1065, func(o *Options) { o.Leeway = tc.leeway })
			_, err := v.Verify(signHMAC(t, baseClaims()))
			if tc.wantErr && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Verify: %v", err)
			}
		})
	}
}
