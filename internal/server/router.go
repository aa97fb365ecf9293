// Package server assembles the panel's HTTP surface.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"customer-panel/backend/internal/audit"
	"customer-panel/backend/internal/gate"
	healthhandler "customer-panel/backend/internal/health/handler"
	"customer-panel/backend/internal/platform/requestctx"
	"customer-panel/backend/internal/platform/respond"
	ssdomain "customer-panel/backend/internal/servicestate/domain"
	sshandler "customer-panel/backend/internal/servicestate/handler"
	sessionhandler "customer-panel/backend/internal/session/handler"
	ssohandler "customer-panel/backend/internal/sso/handler"
	"customer-panel/backend/internal/telemetry/metrics"
)

// Deps holds the handlers and middleware the router mounts. Metrics and Collaborators may be nil.
type Deps struct {
	Health       *healthhandler.Checker
	Gate         *gate.Gate
	Bootstrap    *ssohandler.Handler
	Webhook      *sshandler.Handler
	Session      *sessionhandler.Handler
	Capabilities gate.CapabilityChecker
	Audit        audit.Recorder
	Metrics      *metrics.Metrics
	// TrustedProxies may set X-Forwarded-For / X-Real-IP; the zero value trusts nobody.
	TrustedProxies requestctx.ProxyTrust
	// StaticDir is served under /static/ when non-empty.
	StaticDir string
	// Collaborators are the provisioning backends keyed by capability (mail, dns, migration).
	// A capability without one answers 501 once its gate passes.
	Collaborators map[string]http.Handler
}

// capabilityMounts maps each optional capability to its API prefix.
var capabilityMounts = []struct {
	capability string
	path       string
}{
	{ssdomain.CapabilityMail, "/mail"},
	{ssdomain.CapabilityDNS, "/dns"},
	{ssdomain.CapabilityMigration, "/migrations"},
}

// NewRouter returns the panel handler. Every request passes request-id, recovery, logging, security
// headers, metrics, tracing and then the gate before routing.
func NewRouter(d Deps) http.Handler {
	if d.Capabilities == nil {
		d.Capabilities = flagChecker{}
	}
	r := chi.NewRouter()
	r.Use(RequestID(d.TrustedProxies))
	r.Use(middleware.Recoverer)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(d.Metrics.Instrument)
	r.Use(otelhttp.NewMiddleware("panel"))
	r.Use(d.Gate.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", d.Health.Live)
	r.Get("/ready", d.Health.ReadyHTTP)
	r.Get(gate.LandingPath, landing)
	if d.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}
	r.Get("/sso/billing", d.Bootstrap.Bootstrap)
	r.Post("/webhooks/billing", d.Webhook.Notify)

	r.Route("/api", func(api chi.Router) {
		api.Use(AuditMutations(d.Audit))
		api.Get("/session", d.Session.Current)
		api.Post("/logout", d.Session.Logout)
		for _, m := range capabilityMounts {
			h := d.Collaborators[m.capability]
			if h == nil {
				h = notImplemented(m.capability)
			}
			api.Route(m.path, func(sub chi.Router) {
				sub.Use(gate.RequireCapability(d.Capabilities, m.capability))
				sub.Handle("/*", h)
			})
		}
	})
	return r
}

type landingView struct {
	Service       string `json:"service"`
	Authenticated bool   `json:"authenticated"`
	ServiceID     string `json:"service_id,omitempty"`
	Message       string `json:"message"`
}

// landing is public without a session; with one, the gate has already applied the service posture.
func landing(w http.ResponseWriter, r *http.Request) {
	v := landingView{Service: "customer-panel", Message: "sign in from the billing portal"}
	if p, ok := gate.PrincipalFrom(r.Context()); ok {
		v.Authenticated = true
		v.ServiceID = p.Session.ServiceID
		v.Message = "signed in"
	}
	respond.JSON(w, http.StatusOK, v)
}

func notImplemented(capability string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotImplemented, capability+" provisioning is not available")
	})
}

// flagChecker allows a capability exactly when the service's feature flag is set.
type flagChecker struct{}

func (flagChecker) Allowed(_ context.Context, capability string, st *ssdomain.ServiceState) (bool, error) {
	if st == nil {
		return false, nil
	}
	return st.Features.Capabilities()[capability], nil
}
