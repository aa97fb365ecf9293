// Package config loads and validates panel config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"customer-panel/backend/internal/platform/requestctx"
)

// Config holds application configuration loaded from the environment.
// It is read once at startup and passed by value/pointer into component constructors; nothing mutates it afterwards.
type Config struct {
	// HTTPAddr is the address the panel HTTP server listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health server used by orchestrator probes.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// MetricsAddr is the address serving Prometheus /metrics. Kept off the public listener.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// SSOPublicKey is the billing authority's PEM public key (Ed25519, RSA or ECDSA P-256) or a path to it.
	// Mutually exclusive with SSOHMACSecret.
	SSOPublicKey string `mapstructure:"SSO_PUBLIC_KEY"`
	// SSOHMACSecret is the shared HS256 secret. Mutually exclusive with SSOPublicKey.
	SSOHMACSecret string `mapstructure:"SSO_HMAC_SECRET"`
	// SSOIssuer is the required iss claim of bootstrap tokens.
	SSOIssuer string `mapstructure:"SSO_ISSUER"`
	// SSOAudience is the aud claim to require; empty disables the audience check.
	SSOAudience string `mapstructure:"SSO_AUDIENCE"`
	// SSOClockSkew is the leeway applied to exp/iat/nbf (e.g. "10s").
	SSOClockSkew string `mapstructure:"SSO_CLOCK_SKEW"`
	// SSOMaxAge bounds exp - iat of a bootstrap token (e.g. "90s").
	SSOMaxAge string `mapstructure:"SSO_MAX_AGE"`
	// SSOReplayGrace is added to a consumed token's expiry before its replay row may be purged.
	SSOReplayGrace string `mapstructure:"SSO_REPLAY_GRACE"`
	// SessionTTL is the lifetime of a panel session (e.g. "1h").
	SessionTTL string `mapstructure:"SESSION_TTL"`

	// WebhookSecret is the HMAC-SHA-256 key for billing notifications. Empty rejects every notification.
	WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
	// WebhookSignatureHeader is the request header carrying the hex signature.
	WebhookSignatureHeader string `mapstructure:"WEBHOOK_SIGNATURE_HEADER"`

	// StoreTimeout bounds every storage call (e.g. "10s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`
	// PublicPaths is a comma-separated list of extra allow-listed paths; entries ending in "/" are prefixes.
	PublicPaths string `mapstructure:"PUBLIC_PATHS"`
	// StaticDir is served under /static/ when set.
	StaticDir string `mapstructure:"STATIC_DIR"`
	// CapabilityPolicyFile optionally replaces the built-in capability Rego policy.
	CapabilityPolicyFile string `mapstructure:"CAPABILITY_POLICY_FILE"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure forces plaintext to the collector even for https endpoints.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of brokers; when set, committed audit records are exported.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the topic audit records are exported to.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the audit shipper.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the audit shipper pushes records (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// TrustedProxies is a comma-separated list of CIDRs or addresses whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the client address is always the TCP peer.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// AuditUnauthRate is the sustained rate (records/second) of audit records for unauthenticated traffic;
	// 0 removes the bound.
	AuditUnauthRate float64 `mapstructure:"AUDIT_UNAUTH_RATE"`
	// AuditUnauthBurst is the burst allowed above AuditUnauthRate.
	AuditUnauthBurst int `mapstructure:"AUDIT_UNAUTH_BURST"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":8081")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SSO_PUBLIC_KEY", "")
	v.SetDefault("SSO_HMAC_SECRET", "")
	v.SetDefault("SSO_ISSUER", "whmcs")
	v.SetDefault("SSO_AUDIENCE", "")
	v.SetDefault("SSO_CLOCK_SKEW", "10s")
	v.SetDefault("SSO_MAX_AGE", "90s")
	v.SetDefault("SSO_REPLAY_GRACE", "10s")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_SIGNATURE_HEADER", "X-Billing-Signature")
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("PUBLIC_PATHS", "")
	v.SetDefault("STATIC_DIR", "")
	v.SetDefault("CAPABILITY_POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "panel-audit")
	v.SetDefault("KAFKA_GROUP_ID", "panel-audit-shipper")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("AUDIT_UNAUTH_RATE", 20.0)
	v.SetDefault("AUDIT_UNAUTH_BURST", 100)
}

// Validate checks cross-field constraints. Load calls it; tests may call it on hand-built configs.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	hasKey := strings.TrimSpace(c.SSOPublicKey) != ""
	hasSecret := strings.TrimSpace(c.SSOHMACSecret) != ""
	if hasKey && hasSecret {
		return errors.New("config: set exactly one of SSO_PUBLIC_KEY and SSO_HMAC_SECRET, not both")
	}
	if strings.TrimSpace(c.SSOIssuer) == "" {
		return errors.New("config: SSO_ISSUER must be set")
	}
	if c.Env == "production" {
		if !hasKey && !hasSecret {
			return errors.New("config: SSO_PUBLIC_KEY or SSO_HMAC_SECRET is required when APP_ENV=production")
		}
		if strings.TrimSpace(c.WebhookSecret) == "" {
			return errors.New("config: WEBHOOK_SECRET is required when APP_ENV=production")
		}
	}
	if strings.TrimSpace(c.WebhookSignatureHeader) == "" {
		return errors.New("config: WEBHOOK_SIGNATURE_HEADER must not be empty")
	}
	if _, err := requestctx.ParseProxyTrust(splitList(c.TrustedProxies)); err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}
	if c.AuditUnauthRate < 0 || c.AuditUnauthBurst < 0 {
		return errors.New("config: AUDIT_UNAUTH_RATE and AUDIT_UNAUTH_BURST must not be negative")
	}
	return nil
}

// ClockSkew parses SSOClockSkew. Returns 10s if unset or invalid.
func (c *Config) ClockSkew() time.Duration {
	return parseDuration(c.SSOClockSkew, 10*time.Second, true)
}

// MaxTokenAge parses SSOMaxAge. Returns 90s if unset or invalid.
func (c *Config) MaxTokenAge() time.Duration {
	return parseDuration(c.SSOMaxAge, 90*time.Second, false)
}

// ReplayGrace parses SSOReplayGrace. Returns 10s if unset or invalid.
func (c *Config) ReplayGrace() time.Duration {
	return parseDuration(c.SSOReplayGrace, 10*time.Second, true)
}

// SessionLifetime parses SessionTTL. Returns 1h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	return parseDuration(c.SessionTTL, time.Hour, false)
}

// StorageTimeout parses StoreTimeout. Returns 10s if unset or invalid.
func (c *Config) StorageTimeout() time.Duration {
	return parseDuration(c.StoreTimeout, 10*time.Second, false)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// ProxyTrust returns the parsed TrustedProxies. Invalid entries are rejected by Validate, so an unvalidated
// config with bad entries trusts nobody.
func (c *Config) ProxyTrust() requestctx.ProxyTrust {
	if c == nil {
		return requestctx.ProxyTrust{}
	}
	trust, err := requestctx.ParseProxyTrust(splitList(c.TrustedProxies))
	if err != nil {
		return requestctx.ProxyTrust{}
	}
	return trust
}

// PublicPathList returns the extra allow-listed paths.
func (c *Config) PublicPathList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.PublicPaths)
}

func parseDuration(s string, fallback time.Duration, allowZero bool) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
