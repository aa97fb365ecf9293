package telemetry

import (
	"context"
	"log"
	"time"

	auditdomain "customer-panel/backend/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before closing exporters,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the request is not blocked.
// emitter and rec may be nil; EmitAsync then returns without starting a goroutine.
// The goroutine drops ctx cancellation but keeps its values, so a finished request does not abort the emit.
func EmitAsync(emitter EventEmitter, ctx context.Context, rec *auditdomain.Record) {
	if emitter == nil || rec == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, rec); err != nil {
			log.Printf("telemetry: async emit of audit record %d failed: %v", rec.ID, err)
		}
	}()
}
