package server

import (
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"customer-panel/backend/internal/audit"
	auditdomain "customer-panel/backend/internal/audit/domain"
	"customer-panel/backend/internal/gate"
	"customer-panel/backend/internal/platform/requestctx"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// RequestID accepts a sane inbound X-Request-ID or mints a UUID, echoes it on the response and places it
// in the request context together with the client IP. Forwarding headers count only from trusted proxies.
func RequestID(trust requestctx.ProxyTrust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := requestctx.WithRequest(r.Context(), id, requestctx.ClientIPFromRequest(r, trust))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	return strings.IndexFunc(id, func(r rune) bool { return r > unicode.MaxASCII || !unicode.IsPrint(r) || r == ' ' }) < 0
}

// Logging writes one line per request: method, path, status, duration and request id.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Printf("%s %s -> %d (%s) rid=%s", r.Method, r.URL.Path, sw.code, time.Since(start), requestctx.RequestID(r.Context()))
	})
}

// SecurityHeaders sets browser hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'; base-uri 'none'")
		next.ServeHTTP(w, r)
	})
}

// AuditMutations appends an audit record for every state-changing request that reached an authenticated
// handler. It must run behind the gate. Reads are not audited.
func AuditMutations(rec audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !audit.Mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			p, ok := gate.PrincipalFrom(r.Context())
			if !ok {
				return
			}
			pattern := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				pattern = rc.RoutePattern()
			}
			rec.Record(r.Context(), audit.Entry{
				Action:       audit.ParseRoute(r.Method, pattern).Name(),
				ActorSubject: p.Session.SubjectID,
				ActorRole:    audit.RoleCustomer,
				ServiceID:    p.Session.ServiceID,
				Result:       resultOf(sw.code),
				Details: map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": sw.code,
				},
			})
		})
	}
}

func resultOf(code int) auditdomain.Result {
	switch {
	case code >= 500:
		return auditdomain.ResultError
	case code >= 400:
		return auditdomain.ResultDenied
	default:
		return auditdomain.ResultOK
	}
}
