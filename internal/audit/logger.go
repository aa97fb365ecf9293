// Package audit appends hash-chained records of security-relevant actions and exports them once committed.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"customer-panel/backend/internal/audit/domain"
	auditrepo "customer-panel/backend/internal/audit/repository"
	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/platform/requestctx"
	"customer-panel/backend/internal/telemetry"
	"customer-panel/backend/internal/telemetry/metrics"
)

// Actor roles recorded on audit records.
const (
	RoleCustomer = "customer"
	RoleBilling  = "billing"
)

// Entry is one auditable event. Request id and client IP are taken from the request context.
type Entry struct {
	Action       string
	ActorSubject string
	ActorRole    string
	ServiceID    string
	Result       domain.Result
	Details      map[string]any
}

// Recorder is what request handlers depend on.
type Recorder interface {
	// RecordTx appends inside the unit of work carried by ctx; an error must abort that unit.
	RecordTx(ctx context.Context, e Entry) error
	// Record appends on its own, best-effort.
	Record(ctx context.Context, e Entry)
}

// Logger implements Recorder.
type Logger struct {
	repo    auditrepo.Repository
	tx      db.Transactor
	emitter telemetry.EventEmitter
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLogger returns a Logger. emitter receives records after they commit and may be nil; m may be nil.
func NewLogger(repo auditrepo.Repository, tx db.Transactor, emitter telemetry.EventEmitter, m *metrics.Metrics) *Logger {
	return &Logger{repo: repo, tx: tx, emitter: emitter, metrics: m, now: time.Now}
}

// RecordTx appends e within the unit of work carried by ctx, or a new one if there is none.
// On failure the full record is written to the process log and the error is returned wrapped with
// db.ErrStorageUnavailable.
func (l *Logger) RecordTx(ctx context.Context, e Entry) error {
	rec := l.build(ctx, e)
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.repo.Append(ctx, rec, Seal); err != nil {
			return err
		}
		db.AfterCommit(ctx, func(ctx context.Context) {
			telemetry.EmitAsync(l.emitter, ctx, rec)
		})
		return nil
	})
	if err != nil {
		l.metrics.AuditFailure()
		fallback(rec, err)
		return db.Unavailable("audit: append", err)
	}
	return nil
}

// Record appends e in its own unit of work, detached from any transaction and from cancellation of ctx.
// Failures are logged and not returned.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	_ = l.RecordTx(db.Detach(ctx), e)
}

func (l *Logger) build(ctx context.Context, e Entry) *domain.Record {
	details, err := CanonicalDetails(e.Details)
	if err != nil {
		details, _ = CanonicalDetails(map[string]any{"details_error": err.Error()})
	}
	result := e.Result
	if !result.Valid() {
		result = domain.ResultError
	}
	return &domain.Record{
		Timestamp:    l.now().Unix(),
		Action:       e.Action,
		ActorSubject: e.ActorSubject,
		ActorRole:    e.ActorRole,
		ServiceID:    e.ServiceID,
		Result:       result,
		RequestID:    requestctx.RequestID(ctx),
		ActorIP:      requestctx.ClientIP(ctx),
		DetailsJSON:  details,
	}
}

// fallback writes a record that could not be persisted to the process log so it is not lost silently.
func fallback(rec *domain.Record, cause error) {
	b, err := json.Marshal(rec)
	if err != nil {
		log.Printf("audit: append failed: %v (record %s/%s not encodable: %v)", cause, rec.Action, rec.Result, err)
		return
	}
	log.Printf("audit: append failed: %v: record=%s", cause, b)
}
