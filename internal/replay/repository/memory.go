package repository

import (
	"context"
	"sync"
	"time"

	"customer-panel/backend/internal/replay/domain"
)

// MemoryRepository is an in-process Repository for tests and local runs without Postgres.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]domain.ConsumedToken
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]domain.ConsumedToken)}
}

func (m *MemoryRepository) Insert(_ context.Context, t *domain.ConsumedToken) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.TokenID]; ok {
		return false, nil
	}
	m.rows[t.TokenID] = *t
	return true, nil
}

func (m *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.rows {
		if !t.ExpiresAt.After(now) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of recorded token ids.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
