package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	auditdomain "customer-panel/backend/internal/audit/domain"
	"customer-panel/backend/internal/telemetry"
)

// recordLogger is the part of otellog.Logger the emitter uses.
type recordLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends audit records as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("panel.audit")}
}

// NewEventEmitterWithLogger returns an emitter writing to logger.
func NewEventEmitterWithLogger(logger recordLogger) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *auditdomain.Record) error { return nil }

type otelEmitter struct {
	logger recordLogger
}

func (e *otelEmitter) Emit(ctx context.Context, r *auditdomain.Record) error {
	if r == nil {
		return nil
	}
	var rec otellog.Record
	if r.Timestamp > 0 {
		rec.SetTimestamp(time.Unix(r.Timestamp, 0).UTC())
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetEventName("audit." + r.Action)
	rec.SetSeverity(severity(r.Result))
	rec.SetSeverityText(string(r.Result))
	if r.DetailsJSON != "" {
		rec.SetBody(otellog.BytesValue([]byte(r.DetailsJSON)))
	}
	rec.AddAttributes(
		otellog.Int64("audit.id", r.ID),
		otellog.String("audit.action", r.Action),
		otellog.String("audit.result", string(r.Result)),
		otellog.String("audit.digest", r.SelfDigest),
	)
	optional := []struct{ key, value string }{
		{"service_id", r.ServiceID},
		{"actor.sub", r.ActorSubject},
		{"actor.role", r.ActorRole},
		{"actor.ip", r.ActorIP},
		{"request_id", r.RequestID},
	}
	for _, kv := range optional {
		if kv.value != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.value))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severity(r auditdomain.Result) otellog.Severity {
	switch r {
	case auditdomain.ResultDenied:
		return otellog.SeverityWarn
	case auditdomain.ResultError:
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}
