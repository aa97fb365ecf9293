package repository

import (
	"context"
	"sync"

	"customer-panel/backend/internal/servicestate/domain"
)

// MemoryRepository is an in-process Repository for tests and local runs without Postgres.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]domain.ServiceState
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]domain.ServiceState)}
}

func (m *MemoryRepository) GetByServiceID(_ context.Context, serviceID string) (*domain.ServiceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[serviceID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) Upsert(_ context.Context, s *domain.ServiceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ServiceID] = *s
	return nil
}

func (m *MemoryRepository) InsertIfAbsent(_ context.Context, s *domain.ServiceState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.ServiceID]; ok {
		return false, nil
	}
	m.rows[s.ServiceID] = *s
	return true, nil
}
