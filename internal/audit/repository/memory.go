package repository

import (
	"context"
	"sync"

	"customer-panel/backend/internal/audit/domain"
)

// MemoryRepository keeps audit records in process. Used by tests and local runs.
type MemoryRepository struct {
	mu      sync.Mutex
	records []domain.Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Append(_ context.Context, rec *domain.Record, seal SealFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := ""
	if n := len(m.records); n > 0 {
		prev = m.records[n-1].SelfDigest
	}
	seal(rec, prev)
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryRepository) ListAfter(_ context.Context, afterID int64, limit int) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Record
	for i := range m.records {
		if m.records[i].ID <= afterID {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		r := m.records[i]
		out = append(out, &r)
	}
	return out, nil
}

// Records returns a copy of every stored record in id order.
func (m *MemoryRepository) Records() []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Record(nil), m.records...)
}
