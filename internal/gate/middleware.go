package gate

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"customer-panel/backend/internal/audit"
	auditdomain "customer-panel/backend/internal/audit/domain"
	"customer-panel/backend/internal/platform/respond"
	ssdomain "customer-panel/backend/internal/servicestate/domain"
	sessiondomain "customer-panel/backend/internal/session/domain"
	"customer-panel/backend/internal/telemetry/metrics"
)

// CookieName is the session cookie.
const CookieName = "panel_session"

const bearerPrefix = "bearer "

const actionReject = "gate.reject"

// SessionResolver resolves a raw session handle. It returns nil, nil for unknown or expired sessions.
type SessionResolver interface {
	Get(ctx context.Context, sessionID string) (*sessiondomain.Session, error)
}

// StateReader reads the current posture of a service. It returns nil, nil when none is recorded.
type StateReader interface {
	Get(ctx context.Context, serviceID string) (*ssdomain.ServiceState, error)
}

// Gate is the HTTP enforcement middleware.
type Gate struct {
	allow    *AllowList
	sessions SessionResolver
	states   StateReader
	audit    audit.Recorder
	throttle *audit.Throttle
	metrics  *metrics.Metrics
}

// New returns a Gate. rec and m may be nil.
func New(allow *AllowList, sessions SessionResolver, states StateReader, rec audit.Recorder, m *metrics.Metrics) *Gate {
	if allow == nil {
		allow = NewAllowList(nil)
	}
	return &Gate{allow: allow, sessions: sessions, states: states, audit: rec, metrics: m}
}

// WithThrottle bounds the audit records written for requests without a valid session.
func (g *Gate) WithThrottle(t *audit.Throttle) *Gate {
	g.throttle = t
	return g
}

// Middleware enforces the gate. Allow-listed paths pass before any lookup. Otherwise the session and the
// service state are read fresh on every request and a Principal is placed in the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.allow.Public(r.URL.Path) {
			g.metrics.GateDecision("public")
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		token := SessionToken(r)
		sess, err := g.sessions.Get(ctx, token)
		if err != nil {
			g.unavailable(w, r, err)
			return
		}
		if sess == nil {
			if r.URL.Path == LandingPath {
				g.metrics.GateDecision("public")
				next.ServeHTTP(w, r)
				return
			}
			g.unauthenticated(w, r, token != "")
			return
		}

		st, err := g.states.Get(ctx, sess.ServiceID)
		if err != nil {
			g.unavailable(w, r, err)
			return
		}
		if err := Authorize(r.Method, st); err != nil {
			g.reject(w, r, sess, st, err)
			return
		}
		g.metrics.GateDecision("allow")
		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, &Principal{Session: sess, State: st})))
	})
}

func (g *Gate) unauthenticated(w http.ResponseWriter, r *http.Request, presented bool) {
	g.metrics.GateDecision("unauthenticated")
	if g.audit != nil && g.throttle.Allow(actionReject) {
		g.audit.Record(r.Context(), audit.Entry{
			Action: actionReject,
			Result: auditdomain.ResultDenied,
			Details: map[string]any{
				"reason":    "unauthenticated",
				"method":    r.Method,
				"path":      r.URL.Path,
				"presented": presented,
			},
		})
	}
	respond.Error(w, r, http.StatusUnauthorized, ErrAuthRequired.Error())
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, sess *sessiondomain.Session, st *ssdomain.ServiceState, err error) {
	decision := "suspended"
	if errors.Is(err, ErrServiceTerminated) {
		decision = "terminated"
	}
	g.metrics.GateDecision(decision)

	stored := "none"
	if st != nil {
		stored = string(st.Status)
	}
	if g.audit != nil {
		g.audit.Record(r.Context(), audit.Entry{
			Action:       actionReject,
			ActorSubject: sess.SubjectID,
			ActorRole:    audit.RoleCustomer,
			ServiceID:    sess.ServiceID,
			Result:       auditdomain.ResultDenied,
			Details: map[string]any{
				"reason":        decision,
				"stored_status": stored,
				"method":        r.Method,
				"path":          r.URL.Path,
			},
		})
	}
	respond.Error(w, r, StatusCode(err), err.Error())
}

func (g *Gate) unavailable(w http.ResponseWriter, r *http.Request, err error) {
	g.metrics.GateDecision("unavailable")
	log.Printf("gate: %s %s: %v", r.Method, r.URL.Path, err)
	respond.Unavailable(w, r)
}

// SessionToken returns the session handle from the panel_session cookie or, failing that, from an
// Authorization: Bearer header. It returns "" when neither is present.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
