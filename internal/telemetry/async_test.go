package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auditdomain "customer-panel/backend/internal/audit/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	records []*auditdomain.Record
	emitErr error
}

func (m *mockEventEmitter) Emit(ctx context.Context, rec *auditdomain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEmitAsync_NilArguments(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(nil, context.Background(), &auditdomain.Record{ID: 1})
	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(20 * time.Millisecond)
	if emitter.count() != 0 {
		t.Errorf("expected no emits, got %d", emitter.count())
	}
}

func TestEmitAsync_SurvivesCancelledRequest(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(emitter, ctx, &auditdomain.Record{ID: 1, Action: "sso.bootstrap"})
	waitFor(t, func() bool { return emitter.count() == 1 })
}

func TestEmitAsync_ErrorDoesNotPanic(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}
	EmitAsync(emitter, context.Background(), &auditdomain.Record{ID: 2})
	waitFor(t, func() bool { return emitter.count() == 1 })
}

func TestEmitAsync_Concurrent(t *testing.T) {
	emitter := &mockEventEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			EmitAsync(emitter, context.Background(), &auditdomain.Record{ID: id})
		}(int64(i))
	}
	wg.Wait()
	waitFor(t, func() bool { return emitter.count() == 10 })
}

func TestFanout(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("b failed")}
	c := &mockEventEmitter{}
	err := Fanout{a, nil, b, c}.Emit(context.Background(), &auditdomain.Record{ID: 3})
	if err == nil || err.Error() != "b failed" {
		t.Errorf("Fanout error = %v, want b failed", err)
	}
	if a.count() != 1 || b.count() != 1 || c.count() != 1 {
		t.Error("every emitter should receive the record even after a failure")
	}
}
