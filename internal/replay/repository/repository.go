package repository

import (
	"context"
	"time"

	"customer-panel/backend/internal/replay/domain"
)

// Repository defines persistence for consumed token ids.
type Repository interface {
	// Insert records t. It returns false, without error, when t.TokenID is already recorded.
	Insert(ctx context.Context, t *domain.ConsumedToken) (bool, error)
	// DeleteExpired removes rows whose ExpiresAt is at or before now and returns how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
