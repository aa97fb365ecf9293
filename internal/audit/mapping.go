package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Name is the audit action recorded for the route, e.g. "mail.create".
func (a ActionResource) Name() string {
	return a.Resource + "." + a.Action
}

// routeOverrides maps "METHOD pattern" to a fixed action where the verb alone says too little.
var routeOverrides = map[string]ActionResource{
	"POST /api/logout": {Action: "logout", Resource: "session"},
}

// ParseRoute returns action and resource for a request method and chi route pattern
// (e.g. POST /api/dns/{zone}/records -> create on resource "dns").
// The resource is the first path segment after /api; plural segments are singularized (migrations -> migration).
func ParseRoute(method, pattern string) ActionResource {
	if ar, ok := routeOverrides[method+" "+pattern]; ok {
		return ar
	}
	rest, ok := strings.CutPrefix(pattern, "/api/")
	if !ok || rest == "" {
		return ActionResource{Action: methodToAction(method), Resource: "unknown"}
	}
	segment, _, _ := strings.Cut(rest, "/")
	if segment == "" || strings.HasPrefix(segment, "{") || segment == "*" {
		return ActionResource{Action: methodToAction(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: singular(segment)}
}

func singular(s string) string {
	if len(s) > 3 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return s[:len(s)-1]
	}
	return s
}

// Mutating reports whether method changes state and is therefore audited.
func Mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
