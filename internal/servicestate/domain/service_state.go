package domain

import (
	"strings"
	"time"
)

// Status is the authorization posture of a service.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusTerminated Status = "terminated"
)

// Valid reports whether s is one of the three known postures.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusTerminated:
		return true
	}
	return false
}

// Capability names the optional features a service plan can enable.
const (
	CapabilityMail      = "mail"
	CapabilityDNS       = "dns"
	CapabilityMigration = "migration"
)

// FeatureFlags holds the enabled capabilities of a service. Extra carries the billing authority's
// features object as received.
type FeatureFlags struct {
	Mail      bool
	DNS       bool
	Migration bool
	Extra     map[string]any
}

// Capabilities returns every capability name with its enabled state. Boolean entries of Extra are
// included unless they name a built-in capability, either bare or as its "<name>_enabled" flag.
func (f FeatureFlags) Capabilities() map[string]bool {
	out := map[string]bool{
		CapabilityMail:      f.Mail,
		CapabilityDNS:       f.DNS,
		CapabilityMigration: f.Migration,
	}
	for k, v := range f.Extra {
		if _, builtin := out[strings.TrimSuffix(k, "_enabled")]; builtin {
			continue
		}
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}

// ServiceState is the latest posture pushed by the billing authority for one service.
// Writes always replace the whole record.
type ServiceState struct {
	ServiceID string
	Status    Status
	Plan      string
	Features  FeatureFlags
	Quotas    map[string]any
	UpdatedAt time.Time
}
