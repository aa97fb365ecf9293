// Package servicestate holds the billing authority's latest posture per service and maps inbound
// notifications onto it.
package servicestate

import (
	"context"
	"errors"
	"time"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/servicestate/domain"
	"customer-panel/backend/internal/servicestate/repository"
)

// ErrInvalidState is returned when a write carries no service id or an unknown status.
var ErrInvalidState = errors.New("invalid service state")

// Store reads and writes service states. It caches nothing; every Get goes to storage.
type Store struct {
	repo    repository.Repository
	timeout time.Duration
	now     func() time.Time
}

// NewStore returns a Store. timeout bounds each storage call; zero means unbounded. now defaults to time.Now.
func NewStore(repo repository.Repository, timeout time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{repo: repo, timeout: timeout, now: now}
}

// Get returns the state for serviceID, or nil when none has been recorded.
func (s *Store) Get(ctx context.Context, serviceID string) (*domain.ServiceState, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	st, err := s.repo.GetByServiceID(ctx, serviceID)
	if err != nil {
		return nil, db.Unavailable("service state: get", err)
	}
	return st, nil
}

// Upsert replaces the whole record for st.ServiceID and stamps UpdatedAt.
func (s *Store) Upsert(ctx context.Context, st *domain.ServiceState) error {
	if st == nil || st.ServiceID == "" || !st.Status.Valid() {
		return ErrInvalidState
	}
	rec := *st
	rec.UpdatedAt = s.now().UTC()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.Upsert(ctx, &rec); err != nil {
		return db.Unavailable("service state: upsert", err)
	}
	st.UpdatedAt = rec.UpdatedAt
	return nil
}

// SeedActive records serviceID as active only if no state exists yet, so that a first bootstrap is not
// blocked before the billing authority's first notification. An existing posture is never overwritten.
// Reports whether a row was inserted.
func (s *Store) SeedActive(ctx context.Context, serviceID string) (bool, error) {
	if serviceID == "" {
		return false, ErrInvalidState
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	inserted, err := s.repo.InsertIfAbsent(ctx, &domain.ServiceState{
		ServiceID: serviceID,
		Status:    domain.StatusActive,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return false, db.Unavailable("service state: seed", err)
	}
	return inserted, nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
