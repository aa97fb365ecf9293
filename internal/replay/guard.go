// Package replay guarantees that a bootstrap token id is redeemed at most once.
package replay

import (
	"context"
	"errors"
	"log"
	"time"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/replay/domain"
	"customer-panel/backend/internal/replay/repository"
)

// ErrReplayDetected is returned when the token id was already consumed.
var ErrReplayDetected = errors.New("token replay detected")

// Guard records consumed token ids.
type Guard struct {
	repo    repository.Repository
	timeout time.Duration
	now     func() time.Time
}

// NewGuard returns a Guard. timeout bounds each storage call; zero means unbounded. now defaults to time.Now.
func NewGuard(repo repository.Repository, timeout time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{repo: repo, timeout: timeout, now: now}
}

// ConsumeOnce records tokenID with an expiry of expiresAt+grace. Exactly one of any number of concurrent
// callers with the same tokenID succeeds; the rest get ErrReplayDetected.
//
// The write is detached from ctx cancellation: once the insert is issued it is not undone because the
// client went away. Expired rows are purged first on a best-effort basis.
func (g *Guard) ConsumeOnce(ctx context.Context, tokenID string, expiresAt time.Time, grace time.Duration) error {
	if tokenID == "" {
		return ErrReplayDetected
	}
	ctx = context.WithoutCancel(ctx)
	now := g.now()

	if _, err := g.call(ctx, func(ctx context.Context) (int64, error) { return g.repo.DeleteExpired(ctx, now) }); err != nil {
		log.Printf("replay: purge expired tokens: %v", err)
	}

	var inserted bool
	_, err := g.call(ctx, func(ctx context.Context) (int64, error) {
		var err error
		inserted, err = g.repo.Insert(ctx, &domain.ConsumedToken{
			TokenID:   tokenID,
			ExpiresAt: expiresAt.Add(grace),
			CreatedAt: now,
		})
		return 0, err
	})
	if err != nil {
		return db.Unavailable("replay: consume", err)
	}
	if !inserted {
		return ErrReplayDetected
	}
	return nil
}

func (g *Guard) call(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return fn(ctx)
}
