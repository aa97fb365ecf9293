// seed records a development service state and prints a one-time bootstrap link for it.
// Idempotent for the state: an existing posture is left alone unless -status is given.
// Refuses to run with APP_ENV=production.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"strings"

	"customer-panel/backend/internal/config"
	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/security"
	"customer-panel/backend/internal/servicestate"
	ssrepo "customer-panel/backend/internal/servicestate/repository"
	"customer-panel/backend/internal/sso"
)

func main() {
	serviceID := flag.String("service", "dev-service-001", "Service id to seed")
	subject := flag.String("subject", "dev-client-001", "Token subject (billing client id)")
	status := flag.String("status", "", "Status to force (billing vocabulary, e.g. active, suspended, fraud); empty keeps an existing posture")
	returnPath := flag.String("return", "/", "Return path embedded in the token")
	baseURL := flag.String("base-url", "http://localhost:8000", "Panel base URL for the printed link")
	privateKey := flag.String("private-key", "", "PEM private key (inline or path) when SSO_PUBLIC_KEY is configured")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	states := servicestate.NewStore(ssrepo.NewPostgresRepository(database), cfg.StorageTimeout(), nil)
	if strings.TrimSpace(*status) != "" {
		st := servicestate.Update{ServiceID: *serviceID, RawStatus: *status, Status: servicestate.NormalizeStatus(*status)}.State()
		if err := states.Upsert(ctx, st); err != nil {
			log.Fatalf("seed: upsert state: %v", err)
		}
		log.Printf("seed: service %s set to %s", *serviceID, st.Status)
	} else {
		inserted, err := states.SeedActive(ctx, *serviceID)
		if err != nil {
			log.Fatalf("seed: seed state: %v", err)
		}
		if inserted {
			log.Printf("seed: service %s recorded as active", *serviceID)
		} else {
			log.Printf("seed: service %s already has a state. Skipping.", *serviceID)
		}
	}

	issuer, err := newIssuer(cfg, *privateKey)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	token, claims, err := issuer.Issue(*subject, *serviceID, *returnPath)
	if err != nil {
		log.Fatalf("seed: issue token: %v", err)
	}
	fmt.Printf("Bootstrap link (single use, expires %s):\n%s/sso/billing?token=%s\n",
		claims.ExpiresAt.Format("15:04:05"), strings.TrimRight(*baseURL, "/"), url.QueryEscape(token))
}

func newIssuer(cfg *config.Config, privateKey string) (*sso.Issuer, error) {
	ttl := cfg.MaxTokenAge()
	if cfg.SSOHMACSecret != "" {
		return sso.NewHMACIssuer(cfg.SSOHMACSecret, cfg.SSOIssuer, cfg.SSOAudience, ttl), nil
	}
	if privateKey == "" {
		return nil, fmt.Errorf("set SSO_HMAC_SECRET, or pass -private-key matching SSO_PUBLIC_KEY")
	}
	signer, err := security.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return sso.NewKeyIssuer(signer, cfg.SSOIssuer, cfg.SSOAudience, ttl)
}
