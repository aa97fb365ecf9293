// Package handler serves GET /sso/billing: it redeems a bootstrap token for a panel session.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"customer-panel/backend/internal/audit"
	auditdomain "customer-panel/backend/internal/audit/domain"
	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/gate"
	"customer-panel/backend/internal/platform/respond"
	"customer-panel/backend/internal/replay"
	sessiondomain "customer-panel/backend/internal/session/domain"
	"customer-panel/backend/internal/sso"
	"customer-panel/backend/internal/telemetry/metrics"
)

const actionBootstrap = "sso.bootstrap"

// invalidTokenMessage is the only failure body a caller ever sees; causes go to the audit log.
const invalidTokenMessage = "invalid token"

// TokenVerifier checks a bootstrap token without side effects.
type TokenVerifier interface {
	Verify(token string) (*sso.BootstrapClaims, error)
}

// ReplayGuard consumes a token id at most once.
type ReplayGuard interface {
	ConsumeOnce(ctx context.Context, tokenID string, expiresAt time.Time, grace time.Duration) error
}

// SessionCreator issues panel sessions.
type SessionCreator interface {
	Create(ctx context.Context, subjectID, serviceID string, ttl time.Duration) (*sessiondomain.Session, error)
}

// StateSeeder records a first posture for a service that has none.
type StateSeeder interface {
	SeedActive(ctx context.Context, serviceID string) (bool, error)
}

// Deps are the collaborators of Handler. Metrics may be nil.
type Deps struct {
	Verifier    TokenVerifier
	Replay      ReplayGuard
	Sessions    SessionCreator
	States      StateSeeder
	Tx          db.Transactor
	Audit       audit.Recorder
	Metrics     *metrics.Metrics
	SessionTTL  time.Duration
	ReplayGrace time.Duration
}

// Handler redeems bootstrap tokens.
type Handler struct {
	d Deps
}

// NewHandler returns a Handler.
func NewHandler(d Deps) *Handler {
	if d.Tx == nil {
		d.Tx = db.NopTransactor{}
	}
	return &Handler{d: d}
}

type claimsView struct {
	Issuer     string   `json:"iss"`
	Subject    string   `json:"sub"`
	Audience   []string `json:"aud,omitempty"`
	ServiceID  string   `json:"service_id"`
	TokenID    string   `json:"jti"`
	IssuedAt   int64    `json:"iat"`
	ExpiresAt  int64    `json:"exp"`
	ReturnPath string   `json:"return_to"`
}

type bootstrapResponse struct {
	OK        bool       `json:"ok"`
	SessionID string     `json:"session_id"`
	Claims    claimsView `json:"claims"`
}

// Bootstrap verifies the token, consumes its id, then seeds the service state, creates the session and
// appends the audit record in one unit of work. The consumed id stays consumed whatever happens after.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, err := h.d.Verifier.Verify(strings.TrimSpace(r.URL.Query().Get("token")))
	if err != nil {
		h.deny(w, r, nil, verifyReason(err), err)
		return
	}

	if err := h.d.Replay.ConsumeOnce(ctx, claims.TokenID, claims.ExpiresAt, h.d.ReplayGrace); err != nil {
		if errors.Is(err, replay.ErrReplayDetected) {
			h.d.Metrics.ReplayRejected()
			h.deny(w, r, claims, "replay", err)
			return
		}
		h.fail(w, r, claims, err)
		return
	}

	var sess *sessiondomain.Session
	err = h.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		seeded, err := h.d.States.SeedActive(ctx, claims.ServiceID)
		if err != nil {
			return err
		}
		sess, err = h.d.Sessions.Create(ctx, claims.Subject, claims.ServiceID, h.d.SessionTTL)
		if err != nil {
			return err
		}
		return h.d.Audit.RecordTx(ctx, audit.Entry{
			Action:       actionBootstrap,
			ActorSubject: claims.Subject,
			ActorRole:    audit.RoleCustomer,
			ServiceID:    claims.ServiceID,
			Result:       auditdomain.ResultOK,
			Details: map[string]any{
				"jti":           claims.TokenID,
				"auth_strength": sess.AuthStrength,
				"state_seeded":  seeded,
			},
		})
	})
	if err != nil {
		h.fail(w, r, claims, err)
		return
	}
	h.d.Metrics.Bootstrap("ok")

	if wantsJSON(r) {
		respond.JSON(w, http.StatusOK, bootstrapResponse{OK: true, SessionID: sess.ID, Claims: viewOf(claims)})
		return
	}
	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	gate.SetSessionCookie(w, sess.ID, ttl)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, claims.ReturnPath, http.StatusFound)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, claims *sso.BootstrapClaims, reason string, cause error) {
	h.d.Metrics.Bootstrap(reason)
	e := audit.Entry{
		Action:    actionBootstrap,
		ActorRole: audit.RoleCustomer,
		Result:    auditdomain.ResultDenied,
		Details:   map[string]any{"reason": reason, "error": cause.Error()},
	}
	if claims != nil {
		e.ActorSubject = claims.Subject
		e.ServiceID = claims.ServiceID
		e.Details["jti"] = claims.TokenID
	}
	h.d.Audit.Record(r.Context(), e)
	respond.Error(w, r, http.StatusUnauthorized, invalidTokenMessage)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, claims *sso.BootstrapClaims, err error) {
	h.d.Metrics.Bootstrap("error")
	log.Printf("sso: bootstrap for service %s: %v", claims.ServiceID, err)
	h.d.Audit.Record(r.Context(), audit.Entry{
		Action:       actionBootstrap,
		ActorSubject: claims.Subject,
		ActorRole:    audit.RoleCustomer,
		ServiceID:    claims.ServiceID,
		Result:       auditdomain.ResultError,
		Details:      map[string]any{"jti": claims.TokenID, "error": err.Error()},
	})
	if errors.Is(err, db.ErrStorageUnavailable) {
		respond.Unavailable(w, r)
		return
	}
	respond.Error(w, r, http.StatusInternalServerError, "bootstrap failed")
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, sso.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, sso.ErrInvalidRedirect):
		return "invalid_redirect"
	default:
		return "invalid_token"
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "application/json")
}

func viewOf(c *sso.BootstrapClaims) claimsView {
	return claimsView{
		Issuer:     c.Issuer,
		Subject:    c.Subject,
		Audience:   c.Audience,
		ServiceID:  c.ServiceID,
		TokenID:    c.TokenID,
		IssuedAt:   c.IssuedAt.Unix(),
		ExpiresAt:  c.ExpiresAt.Unix(),
		ReturnPath: c.ReturnPath,
	}
}
