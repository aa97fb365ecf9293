package handler

import (
	"log"
	"net/http"

	"customer-panel/backend/internal/platform/respond"
)

// Live always reports ok; it only proves the process is serving.
func (c *Checker) Live(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHTTP reports 200 when Ready passes and 503 otherwise.
func (c *Checker) ReadyHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Ready(r.Context()); err != nil {
		log.Printf("health: not ready: %v", err)
		w.Header().Set("Retry-After", "5")
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
