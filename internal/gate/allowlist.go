package gate

import "strings"

// LandingPath is public only when no valid session resolves; with a session it is gated like any other path.
const LandingPath = "/"

var (
	defaultPublicPaths    = []string{"/health", "/ready", "/sso/billing", "/webhooks/billing"}
	defaultPublicPrefixes = []string{"/static/"}
)

// AllowList holds the paths that skip session and state lookups entirely.
type AllowList struct {
	exact    map[string]bool
	prefixes []string
}

// NewAllowList returns the built-in allow-list extended by extra. Entries ending in "/" are prefixes.
func NewAllowList(extra []string) *AllowList {
	a := &AllowList{exact: make(map[string]bool)}
	for _, p := range defaultPublicPaths {
		a.exact[p] = true
	}
	a.prefixes = append(a.prefixes, defaultPublicPrefixes...)
	for _, p := range extra {
		p = strings.TrimSpace(p)
		switch {
		case p == "" || p == "/" || !strings.HasPrefix(p, "/"):
			continue
		case strings.HasSuffix(p, "/"):
			a.prefixes = append(a.prefixes, p)
		default:
			a.exact[p] = true
		}
	}
	return a
}

// Public reports whether path is allow-listed.
func (a *AllowList) Public(path string) bool {
	if a.exact[path] {
		return true
	}
	for _, prefix := range a.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
