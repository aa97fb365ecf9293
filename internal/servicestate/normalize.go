package servicestate

import (
	"strings"

	"customer-panel/backend/internal/servicestate/domain"
)

var statusVocabulary = map[string]domain.Status{
	"active":         domain.StatusActive,
	"active service": domain.StatusActive,
	"ok":             domain.StatusActive,

	"suspended": domain.StatusSuspended,
	"suspend":   domain.StatusSuspended,
	"on hold":   domain.StatusSuspended,
	"overdue":   domain.StatusSuspended,

	"terminated": domain.StatusTerminated,
	"terminate":  domain.StatusTerminated,
	"cancelled":  domain.StatusTerminated,
	"canceled":   domain.StatusTerminated,
	"fraud":      domain.StatusTerminated,
	"closed":     domain.StatusTerminated,
}

// NormalizeStatus maps a free-text billing status onto the closed set of postures.
// Case and surrounding or repeated whitespace are ignored. Anything unrecognized is suspended, never active.
func NormalizeStatus(raw string) domain.Status {
	key := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if s, ok := statusVocabulary[key]; ok {
		return s
	}
	return domain.StatusSuspended
}
