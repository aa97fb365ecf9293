package domain

import "time"

// AuthStrengthBillingSSO marks sessions created from a billing-authority bootstrap token.
const AuthStrengthBillingSSO = "billing_sso"

// Session is pure identity: it binds a bearer handle to a subject and a service.
// Authorization is never cached here; it is looked up from service state on every request.
type Session struct {
	ID           string // raw bearer handle; only its SHA-256 is persisted
	SubjectID    string
	ServiceID    string
	AuthStrength string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session is no longer valid at now. A session expiring exactly at now is expired.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
