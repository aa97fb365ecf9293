package repository

import (
	"context"

	"customer-panel/backend/internal/servicestate/domain"
)

// Repository defines persistence for service states.
type Repository interface {
	// GetByServiceID returns the state for serviceID, or nil if not found.
	GetByServiceID(ctx context.Context, serviceID string) (*domain.ServiceState, error)
	// Upsert inserts s or replaces every field of the existing row.
	Upsert(ctx context.Context, s *domain.ServiceState) error
	// InsertIfAbsent inserts s only when no row exists for s.ServiceID and reports whether it did.
	InsertIfAbsent(ctx context.Context, s *domain.ServiceState) (bool, error)
}
