// Package gate decides, per request, whether a caller may proceed, may only read, or is rejected, based
// on the caller's session and the billing authority's current posture for the session's service.
package gate

import (
	"context"
	"errors"
	"net/http"

	ssdomain "customer-panel/backend/internal/servicestate/domain"
	sessiondomain "customer-panel/backend/internal/session/domain"
)

var (
	// ErrAuthRequired means no valid session was presented.
	ErrAuthRequired = errors.New("authentication required")
	// ErrServiceSuspended means the service is suspended and the request is not read-only.
	ErrServiceSuspended = errors.New("service suspended")
	// ErrServiceTerminated means the service is terminated; nothing is allowed.
	ErrServiceTerminated = errors.New("service terminated")
)

// Authorize decides a request with method against the service state. A nil state or an unrecognized
// status is treated as suspended.
func Authorize(method string, st *ssdomain.ServiceState) error {
	status := ssdomain.StatusSuspended
	if st != nil && st.Status.Valid() {
		status = st.Status
	}
	switch status {
	case ssdomain.StatusActive:
		return nil
	case ssdomain.StatusTerminated:
		return ErrServiceTerminated
	default:
		if readOnly(method) {
			return nil
		}
		return ErrServiceSuspended
	}
}

func readOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// StatusCode maps a gate error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrServiceSuspended):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceTerminated):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// Principal is the authenticated caller of a request: its session and the service state read for it.
type Principal struct {
	Session *sessiondomain.Session
	State   *ssdomain.ServiceState
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal placed by the gate, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
