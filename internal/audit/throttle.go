package audit

import (
	"golang.org/x/time/rate"

	"customer-panel/backend/internal/telemetry/metrics"
)

// Throttle bounds how many records unauthenticated traffic may append per second. Every append takes the
// chain lock, so denials nobody signed must not be able to stall the records that matter.
// A nil *Throttle admits everything.
type Throttle struct {
	lim     *rate.Limiter
	metrics *metrics.Metrics
}

// NewThrottle returns a Throttle admitting perSecond records with bursts of burst. perSecond <= 0 returns
// nil, which disables the bound. m may be nil.
func NewThrottle(perSecond float64, burst int, m *metrics.Metrics) *Throttle {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{lim: rate.NewLimiter(rate.Limit(perSecond), burst), metrics: m}
}

// Allow reports whether a record for action may be written now. Skipped records are counted.
func (t *Throttle) Allow(action string) bool {
	if t == nil {
		return true
	}
	if t.lim.Allow() {
		return true
	}
	t.metrics.AuditThrottled(action)
	return false
}
