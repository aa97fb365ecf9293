// Package session issues, resolves and lazily expires panel sessions.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/security"
	"customer-panel/backend/internal/session/domain"
	"customer-panel/backend/internal/session/repository"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = time.Hour

// Store owns sessions. The raw handle is returned once, at creation; storage only sees its hash.
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

// Create issues a session for subjectID on serviceID valid for ttl (DefaultTTL when ttl <= 0).
// It fails only when randomness or storage is unavailable.
func (s *Store) Create(ctx context.Context, subjectID, serviceID string, ttl time.Duration) (*domain.Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id, err := security.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}
	now := s.now().UTC()
	sess := &domain.Session{
		ID:           id,
		SubjectID:    subjectID,
		ServiceID:    serviceID,
		AuthStrength: domain.AuthStrengthBillingSSO,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.Create(ctx, security.HashToken(id), sess); err != nil {
		return nil, db.Unavailable("session: create", err)
	}
	return sess, nil
}

// Get resolves sessionID. It returns nil, nil when the session is unknown or expired;
// an expired row is deleted by the lookup that observes it.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	idHash := security.HashToken(sessionID)
	sess, err := s.repo.GetByIDHash(ctx, idHash)
	if err != nil {
		return nil, db.Unavailable("session: get", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(s.now()) {
		if err := s.repo.Delete(ctx, idHash); err != nil {
			log.Printf("session: delete expired session: %v", err)
		}
		return nil, nil
	}
	sess.ID = sessionID
	return sess, nil
}

// Delete removes the session (logout). Unknown sessions are ignored.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.repo.Delete(ctx, security.HashToken(sessionID)); err != nil {
		return db.Unavailable("session: delete", err)
	}
	return nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
