package telemetry

import (
	"context"
	"errors"

	auditdomain "customer-panel/backend/internal/audit/domain"
)

// EventEmitter exports committed audit records (e.g. to Kafka or OTel Logs). Best-effort; callers log
// and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, rec *auditdomain.Record) error
}

// Fanout emits every record to each non-nil emitter in order and joins their errors.
type Fanout []EventEmitter

// Emit implements EventEmitter.
func (f Fanout) Emit(ctx context.Context, rec *auditdomain.Record) error {
	var errs []error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
