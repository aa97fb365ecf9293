package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	auditdomain "customer-panel/backend/internal/audit/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &auditdomain.Record{ID: 1}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_NilRecord_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewEventEmitter(provider).Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attributes(rec otellog.Record) map[string]otellog.Value {
	attrs := make(map[string]otellog.Value)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	return attrs
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	rec := &auditdomain.Record{
		ID: 9, Timestamp: 1000, Action: "gate.reject", ActorSubject: "u1", ServiceID: "s1",
		Result: auditdomain.ResultDenied, RequestID: "r1", DetailsJSON: `{"reason":"suspended"}`, SelfDigest: "abc",
	}
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), rec); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got := cap.rec
	if string(got.Body().AsBytes()) != rec.DetailsJSON {
		t.Errorf("body = %q, want %q", got.Body().AsBytes(), rec.DetailsJSON)
	}
	if !got.Timestamp().Equal(time.Unix(1000, 0)) {
		t.Errorf("timestamp = %v, want unix 1000", got.Timestamp())
	}
	if got.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn for denied", got.Severity())
	}
	if got.EventName() != "audit.gate.reject" {
		t.Errorf("event name = %q", got.EventName())
	}
	attrs := attributes(got)
	if attrs["audit.id"].AsInt64() != 9 {
		t.Errorf("audit.id = %v", attrs["audit.id"])
	}
	for k, want := range map[string]string{"actor.sub": "u1", "service_id": "s1", "request_id": "r1", "audit.digest": "abc"} {
		if attrs[k].AsString() != want {
			t.Errorf("attr %q = %q, want %q", k, attrs[k].AsString(), want)
		}
	}
	if _, ok := attrs["actor.ip"]; ok {
		t.Error("empty actor ip should not be emitted")
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	before := time.Now().UTC().Add(-time.Second)
	if err := NewEventEmitterWithLogger(cap).Emit(context.Background(), &auditdomain.Record{Action: "x", Result: auditdomain.ResultOK}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.rec.Timestamp().Before(before) {
		t.Errorf("timestamp %v should default to now", cap.rec.Timestamp())
	}
	if !cap.rec.Body().Empty() {
		t.Error("body should be empty without details")
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", cap.rec.Severity())
	}
}

func TestSeverity(t *testing.T) {
	testCases := []struct {
		result auditdomain.Result
		want   otellog.Severity
	}{
		{auditdomain.ResultOK, otellog.SeverityInfo},
		{auditdomain.ResultDenied, otellog.SeverityWarn},
		{auditdomain.ResultError, otellog.SeverityError},
	}
	for _, tc := range testCases {
		if got := severity(tc.result); got != tc.want {
			t.Errorf("severity(%s) = %v, want %v", tc.result, got, tc.want)
		}
	}
}
