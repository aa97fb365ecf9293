package repository

import (
	"context"
	"sync"

	"customer-panel/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository for tests and local runs without Postgres.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Session
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]domain.Session)}
}

func (m *MemoryRepository) GetByIDHash(_ context.Context, idHash string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[idHash]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) Create(_ context.Context, idHash string, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *s
	row.ID = ""
	m.rows[idHash] = row
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, idHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, idHash)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
