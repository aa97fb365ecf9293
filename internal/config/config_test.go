package config

import (
	"net/http/httptest"
	"testing"
	"time"

	"customer-panel/backend/internal/platform/requestctx"
)

func validConfig() *Config {
	return &Config{
		HTTPAddr:               ":8000",
		SSOIssuer:              "whmcs",
		WebhookSignatureHeader: "X-Billing-Signature",
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SSO_PUBLIC_KEY", "")
	t.Setenv("SSO_HMAC_SECRET", "")
	t.Setenv("APP_ENV", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.SSOIssuer != "whmcs" {
		t.Errorf("SSOIssuer = %q, want %q", cfg.SSOIssuer, "whmcs")
	}
	if cfg.WebhookSignatureHeader != "X-Billing-Signature" {
		t.Errorf("WebhookSignatureHeader = %q", cfg.WebhookSignatureHeader)
	}
	if got := cfg.ClockSkew(); got != 10*time.Second {
		t.Errorf("ClockSkew = %v, want 10s", got)
	}
	if got := cfg.MaxTokenAge(); got != 90*time.Second {
		t.Errorf("MaxTokenAge = %v, want 90s", got)
	}
	if got := cfg.SessionLifetime(); got != time.Hour {
		t.Errorf("SessionLifetime = %v, want 1h", got)
	}
	if got := cfg.StorageTimeout(); got != 10*time.Second {
		t.Errorf("StorageTimeout = %v, want 10s", got)
	}
	if cfg.AuditUnauthRate != 20 || cfg.AuditUnauthBurst != 100 {
		t.Errorf("audit throttle = %v/%d, want 20/100", cfg.AuditUnauthRate, cfg.AuditUnauthBurst)
	}
	if cfg.TrustedProxies != "" {
		t.Errorf("TrustedProxies = %q, want none by default", cfg.TrustedProxies)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SSO_HMAC_SECRET", "s3cret")
	t.Setenv("SSO_PUBLIC_KEY", "")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SSO_AUDIENCE", "panel")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SSOHMACSecret != "s3cret" {
		t.Errorf("SSOHMACSecret = %q", cfg.SSOHMACSecret)
	}
	if cfg.SSOAudience != "panel" {
		t.Errorf("SSOAudience = %q", cfg.SSOAudience)
	}
	if got := cfg.SessionLifetime(); got != 30*time.Minute {
		t.Errorf("SessionLifetime = %v, want 30m", got)
	}
}

func TestValidate_BothKeySchemes(t *testing.T) {
	cfg := validConfig()
	cfg.SSOPublicKey = "-----BEGIN PUBLIC KEY-----"
	cfg.SSOHMACSecret = "secret"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate should reject both key schemes configured")
	}
}

func TestValidate_Production(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"no key scheme", func(c *Config) {}, true},
		{"no webhook secret", func(c *Config) { c.SSOHMACSecret = "x" }, true},
		{"complete", func(c *Config) { c.SSOHMACSecret = "x"; c.WebhookSecret = "y" }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Env = "production"
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_EmptyIssuer(t *testing.T) {
	cfg := validConfig()
	cfg.SSOIssuer = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate should reject an empty issuer")
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{SSOClockSkew: "0s", SSOMaxAge: "0s", SessionTTL: "bogus", StoreTimeout: "-1s"}
	if got := cfg.ClockSkew(); got != 0 {
		t.Errorf("ClockSkew = %v, want 0 (zero leeway is allowed)", got)
	}
	if got := cfg.MaxTokenAge(); got != 90*time.Second {
		t.Errorf("MaxTokenAge = %v, want fallback 90s", got)
	}
	if got := cfg.SessionLifetime(); got != time.Hour {
		t.Errorf("SessionLifetime = %v, want fallback 1h", got)
	}
	if got := cfg.StorageTimeout(); got != 10*time.Second {
		t.Errorf("StorageTimeout = %v, want fallback 10s", got)
	}
}

func TestLists(t *testing.T) {
	cfg := &Config{KafkaBrokers: " a:9092, ,b:9092 ", PublicPaths: "/docs,/assets/"}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "a:9092" || brokers[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", brokers)
	}
	paths := cfg.PublicPathList()
	if len(paths) != 2 || paths[1] != "/assets/" {
		t.Errorf("PublicPathList = %v", paths)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should yield nil brokers")
	}
}

func TestValidate_TrustedProxies(t *testing.T) {
	cfg := validConfig()
	cfg.TrustedProxies = "10.0.0.0/8, 192.0.2.1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.2.3:443"
	r.Header.Set("X-Forwarded-For", "203.0.113.5")
	if got := requestctx.ClientIPFromRequest(r, cfg.ProxyTrust()); got != "203.0.113.5" {
		t.Errorf("client ip via trusted proxy = %q", got)
	}

	cfg.TrustedProxies = "10.0.0.0/33"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject an invalid CIDR")
	}
}

func TestValidate_NegativeAuditThrottle(t *testing.T) {
	cfg := validConfig()
	cfg.AuditUnauthRate = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject a negative rate")
	}
}
