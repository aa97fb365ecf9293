package requestctx

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestWithRequest(t *testing.T) {
	ctx := WithRequest(context.Background(), "req-1", "10.0.0.1")
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID = %q, want req-1", got)
	}
	if got := ClientIP(ctx); got != "10.0.0.1" {
		t.Errorf("ClientIP = %q, want 10.0.0.1", got)
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	if RequestID(ctx) != "" || ClientIP(ctx) != "" {
		t.Error("empty context should yield empty values")
	}
}

func TestClientIPFromRequest(t *testing.T) {
	trust, err := ParseProxyTrust([]string{"10.0.0.0/8", "192.0.2.1"})
	if err != nil {
		t.Fatalf("ParseProxyTrust: %v", err)
	}
	testCases := []struct {
		name       string
		trust      ProxyTrust
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"untrusted peer ignores forwarded for", trust, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "198.51.100.1:1234", "198.51.100.1"},
		{"untrusted peer ignores real ip", trust, map[string]string{"X-Real-IP": "203.0.113.5"}, "198.51.100.1:1234", "198.51.100.1"},
		{"no trust configured", ProxyTrust{}, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.1:1234", "10.0.0.1"},
		{"trusted peer", trust, map[string]string{"X-Forwarded-For": "203.0.113.5"}, "10.0.0.1:1234", "203.0.113.5"},
		{"spoofed left-most hop", trust, map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.5, 10.2.2.2"}, "10.0.0.1:1234", "203.0.113.5"},
		{"every hop trusted", trust, map[string]string{"X-Forwarded-For": "10.3.3.3"}, "10.0.0.1:1234", "10.0.0.1"},
		{"garbage hop stops the walk", trust, map[string]string{"X-Forwarded-For": "203.0.113.5, nonsense", "X-Real-IP": "198.51.100.7"}, "10.0.0.1:1234", "198.51.100.7"},
		{"real ip from trusted peer", trust, map[string]string{"X-Real-IP": "198.51.100.7"}, "192.0.2.1:80", "198.51.100.7"},
		{"peer", trust, nil, "192.0.2.9:5555", "192.0.2.9"},
		{"peer without port", trust, nil, "192.0.2.9", "192.0.2.9"},
		{"unknown", trust, nil, "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIPFromRequest(r, tc.trust); got != tc.want {
				t.Errorf("ClientIPFromRequest = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseProxyTrust_Invalid(t *testing.T) {
	for _, in := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := ParseProxyTrust([]string{in}); err == nil {
			t.Errorf("ParseProxyTrust(%q): want error", in)
		}
	}
	if p, err := ParseProxyTrust([]string{"", " "}); err != nil || len(p.nets) != 0 {
		t.Errorf("blank entries = %v, %v", p, err)
	}
}
