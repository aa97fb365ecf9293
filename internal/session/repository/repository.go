package repository

import (
	"context"

	"customer-panel/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Rows are keyed by the SHA-256 hex of the session handle.
type Repository interface {
	// GetByIDHash returns the session for idHash, or nil if not found. ID is left empty.
	GetByIDHash(ctx context.Context, idHash string) (*domain.Session, error)
	Create(ctx context.Context, idHash string, s *domain.Session) error
	Delete(ctx context.Context, idHash string) error
}
