// Package handler serves POST /webhooks/billing, the billing authority's service-state notifications.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"customer-panel/backend/internal/audit"
	auditdomain "customer-panel/backend/internal/audit/domain"
	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/platform/respond"
	"customer-panel/backend/internal/security"
	"customer-panel/backend/internal/servicestate"
	"customer-panel/backend/internal/servicestate/domain"
	"customer-panel/backend/internal/telemetry/metrics"
)

// MaxBodyBytes caps a notification body.
const MaxBodyBytes = 1 << 20

const actionNotification = "billing.notification"

var (
	// ErrSignatureInvalid means the signature header is missing or does not match the body.
	ErrSignatureInvalid = errors.New("invalid signature")
	// ErrMalformedPayload means the body is not a JSON object or lacks a service id or status.
	ErrMalformedPayload = errors.New("malformed payload")
)

// StateWriter replaces a service's state.
type StateWriter interface {
	Upsert(ctx context.Context, st *domain.ServiceState) error
}

// Deps are the collaborators of Handler. Metrics may be nil.
type Deps struct {
	// Secret is the HMAC key; empty rejects every notification.
	Secret string
	// SignatureHeader carries the hex HMAC-SHA-256 of the raw body.
	SignatureHeader string
	States          StateWriter
	Tx              db.Transactor
	Audit           audit.Recorder
	// Throttle bounds the audit records of notifications rejected before their signature checked out.
	Throttle *audit.Throttle
	Metrics  *metrics.Metrics
}

// Handler applies billing notifications.
type Handler struct {
	d Deps
}

// NewHandler returns a Handler.
func NewHandler(d Deps) *Handler {
	if d.Tx == nil {
		d.Tx = db.NopTransactor{}
	}
	if d.SignatureHeader == "" {
		d.SignatureHeader = "X-Billing-Signature"
	}
	return &Handler{d: d}
}

// Notify authenticates the raw body, maps it onto a full service state and stores it together with its
// audit record.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.deny(w, r, http.StatusRequestEntityTooLarge, "too_large", "", "payload too large")
			return
		}
		h.deny(w, r, http.StatusBadRequest, "read_error", "", ErrMalformedPayload.Error())
		return
	}

	if h.d.Secret == "" {
		h.deny(w, r, http.StatusUnauthorized, "not_configured", "", ErrSignatureInvalid.Error())
		return
	}
	if !security.VerifyHMAC(h.d.Secret, body, r.Header.Get(h.d.SignatureHeader)) {
		h.deny(w, r, http.StatusUnauthorized, "bad_signature", "", ErrSignatureInvalid.Error())
		return
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil || payload == nil {
		h.deny(w, r, http.StatusBadRequest, "malformed_json", "", ErrMalformedPayload.Error())
		return
	}
	u := servicestate.ParseNotification(payload)
	if u.ServiceID == "" || u.RawStatus == "" {
		h.deny(w, r, http.StatusBadRequest, "missing_fields", u.ServiceID, ErrMalformedPayload.Error())
		return
	}

	st := u.State()
	err = h.d.Tx.WithinTx(r.Context(), func(ctx context.Context) error {
		if err := h.d.States.Upsert(ctx, st); err != nil {
			return err
		}
		return h.d.Audit.RecordTx(ctx, audit.Entry{
			Action:    actionNotification,
			ActorRole: audit.RoleBilling,
			ServiceID: st.ServiceID,
			Result:    auditdomain.ResultOK,
			Details: map[string]any{
				"raw_status":        u.RawStatus,
				"status":            string(st.Status),
				"plan":              st.Plan,
				"mail_enabled":      st.Features.Mail,
				"dns_enabled":       st.Features.DNS,
				"migration_enabled": st.Features.Migration,
			},
		})
	})
	if err != nil {
		h.d.Metrics.Notification("error")
		log.Printf("webhook: apply notification for service %s: %v", st.ServiceID, err)
		if errors.Is(err, db.ErrStorageUnavailable) {
			respond.Unavailable(w, r)
			return
		}
		respond.Error(w, r, http.StatusInternalServerError, "notification failed")
		return
	}
	h.d.Metrics.Notification("ok")
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, code int, reason, serviceID, msg string) {
	h.d.Metrics.Notification(reason)
	if signed(reason) || h.d.Throttle.Allow(actionNotification) {
		h.d.Audit.Record(r.Context(), audit.Entry{
			Action:    actionNotification,
			ActorRole: audit.RoleBilling,
			ServiceID: serviceID,
			Result:    auditdomain.ResultDenied,
			Details:   map[string]any{"reason": reason},
		})
	}
	respond.Error(w, r, code, msg)
}

// signed reports whether a denial reason comes after the body's signature was verified.
func signed(reason string) bool {
	switch reason {
	case "too_large", "read_error", "not_configured", "bad_signature":
		return false
	}
	return true
}
