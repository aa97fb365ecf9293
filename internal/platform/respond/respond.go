// Package respond writes the panel's JSON responses.
package respond

import (
	"encoding/json"
	"net/http"
	"strconv"

	"customer-panel/backend/internal/platform/requestctx"
)

// RetryAfter is the Retry-After hint, in seconds, sent with 503 responses.
const RetryAfter = 5

// JSON writes v with status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} plus the request id when one is known.
func Error(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := requestctx.RequestID(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	JSON(w, code, payload)
}

// Unavailable writes 503 with a Retry-After header.
func Unavailable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfter))
	Error(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
}
