package gate

import (
	"context"
	"log"
	"net/http"

	"customer-panel/backend/internal/platform/respond"
	ssdomain "customer-panel/backend/internal/servicestate/domain"
)

// CapabilityChecker decides whether a service may use an optional capability.
type CapabilityChecker interface {
	Allowed(ctx context.Context, capability string, st *ssdomain.ServiceState) (bool, error)
}

// RequireCapability rejects requests whose service does not have capability enabled. It must run behind
// Middleware; a request without a Principal is rejected with 401.
func RequireCapability(checker CapabilityChecker, capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				respond.Error(w, r, http.StatusUnauthorized, ErrAuthRequired.Error())
				return
			}
			allowed, err := checker.Allowed(r.Context(), capability, p.State)
			if err != nil {
				log.Printf("gate: capability %s: %v", capability, err)
				respond.Error(w, r, http.StatusInternalServerError, "capability check failed")
				return
			}
			if !allowed {
				respond.Error(w, r, http.StatusForbidden, capability+" is not enabled for this service")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
