package servicestate

import (
	"encoding/json"
	"strconv"
	"strings"

	"customer-panel/backend/internal/servicestate/domain"
)

// Update is a billing notification reduced to strict fields.
type Update struct {
	ServiceID string
	// RawStatus is the status as sent, before normalization; empty when absent.
	RawStatus string
	Status    domain.Status
	Plan      string
	Features  domain.FeatureFlags
	Quotas    map[string]any
}

// State returns the full replacement record described by u.
func (u Update) State() *domain.ServiceState {
	return &domain.ServiceState{
		ServiceID: u.ServiceID,
		Status:    u.Status,
		Plan:      u.Plan,
		Features:  u.Features,
		Quotas:    u.Quotas,
	}
}

// ParseNotification reduces a loosely-typed notification body to an Update. It never fails:
// unknown keys are ignored and malformed shapes are dropped, leaving fail-closed defaults.
//
// Decode bodies with json.Decoder.UseNumber so numeric ids keep their exact text.
func ParseNotification(payload map[string]any) Update {
	service, _ := payload["service"].(map[string]any)

	u := Update{
		ServiceID: strings.TrimSpace(firstString(
			payload["service_id"], payload["serviceid"], payload["serviceId"], lookup(service, "id"))),
		RawStatus: strings.TrimSpace(firstString(
			payload["status"], payload["service_status"], lookup(service, "status"))),
		Plan: strings.TrimSpace(firstString(payload["plan"], payload["product"], payload["product_name"])),
	}
	u.Status = NormalizeStatus(u.RawStatus)

	features, _ := payload["features"].(map[string]any)
	u.Quotas, _ = payload["quotas"].(map[string]any)
	u.Features = domain.FeatureFlags{
		Mail:      truthy(payload["mail_enabled"]) || truthy(lookup(features, "mail_enabled")),
		DNS:       truthy(payload["dns_enabled"]) || truthy(lookup(features, "dns_enabled")),
		Migration: truthy(payload["migration_enabled"]) || truthy(lookup(features, "migration_enabled")),
		Extra:     features,
	}
	return u
}

func lookup(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

// firstString returns the string form of the first value that is a non-empty string or a number.
func firstString(values ...any) string {
	for _, v := range values {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return t
			}
		case json.Number:
			return t.String()
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case int64:
			return strconv.FormatInt(t, 10)
		}
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y", "on", "enabled":
			return true
		}
	}
	return false
}
