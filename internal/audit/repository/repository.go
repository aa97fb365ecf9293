package repository

import (
	"context"

	"customer-panel/backend/internal/audit/domain"
)

// SealFunc links a record to the digest of the record before it. prev is "" for the first record.
type SealFunc func(rec *domain.Record, prev string)

// Repository defines persistence for audit records. Records are never updated or deleted.
type Repository interface {
	// Append reads the latest digest, calls seal and inserts rec, with concurrent appends serialized.
	// rec.ID is set on success.
	Append(ctx context.Context, rec *domain.Record, seal SealFunc) error
	// ListAfter returns up to limit records with id > afterID in id order.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Record, error)
}
