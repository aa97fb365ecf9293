// Package handler serves the authenticated session endpoints. Both handlers run behind the gate.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/gate"
	"customer-panel/backend/internal/platform/respond"
	ssdomain "customer-panel/backend/internal/servicestate/domain"
)

// Deleter removes a session by its raw handle.
type Deleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// CapabilityLister lists the capabilities enabled for a service.
type CapabilityLister interface {
	Enabled(ctx context.Context, st *ssdomain.ServiceState) ([]string, error)
}

// Handler serves GET /api/session and POST /api/logout.
type Handler struct {
	sessions Deleter
	caps     CapabilityLister
}

// NewHandler returns a Handler. When caps is nil the service's raw feature flags are reported.
func NewHandler(sessions Deleter, caps CapabilityLister) *Handler {
	return &Handler{sessions: sessions, caps: caps}
}

type serviceView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Plan      string `json:"plan,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type sessionView struct {
	Subject      string       `json:"subject"`
	ServiceID    string       `json:"service_id"`
	AuthStrength string       `json:"auth_strength"`
	ExpiresAt    string       `json:"expires_at"`
	Service      *serviceView `json:"service"`
	Capabilities []string     `json:"capabilities"`
}

// Current returns the caller's identity, the service state the gate read for this request and the
// capabilities it enables.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	p, ok := gate.PrincipalFrom(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, gate.ErrAuthRequired.Error())
		return
	}
	caps, err := h.capabilities(r.Context(), p.State)
	if err != nil {
		log.Printf("session: capabilities for %s: %v", p.Session.ServiceID, err)
		respond.Error(w, r, http.StatusInternalServerError, "capability evaluation failed")
		return
	}
	view := sessionView{
		Subject:      p.Session.SubjectID,
		ServiceID:    p.Session.ServiceID,
		AuthStrength: p.Session.AuthStrength,
		ExpiresAt:    p.Session.ExpiresAt.UTC().Format(time.RFC3339),
		Capabilities: caps,
	}
	if st := p.State; st != nil {
		view.Service = &serviceView{ID: st.ServiceID, Status: string(st.Status), Plan: st.Plan}
		if !st.UpdatedAt.IsZero() {
			view.Service.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
		}
	}
	respond.JSON(w, http.StatusOK, view)
}

// Logout deletes the caller's session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := gate.PrincipalFrom(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, gate.ErrAuthRequired.Error())
		return
	}
	if err := h.sessions.Delete(r.Context(), p.Session.ID); err != nil {
		if errors.Is(err, db.ErrStorageUnavailable) {
			log.Printf("session: logout: %v", err)
			respond.Unavailable(w, r)
			return
		}
		log.Printf("session: logout: %v", err)
		respond.Error(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	gate.ClearSessionCookie(w)
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) capabilities(ctx context.Context, st *ssdomain.ServiceState) ([]string, error) {
	if h.caps != nil {
		return h.caps.Enabled(ctx, st)
	}
	out := []string{}
	if st == nil {
		return out, nil
	}
	for name, on := range st.Features.Capabilities() {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
