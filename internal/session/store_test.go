package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/security"
	"customer-panel/backend/internal/session/domain"
	"customer-panel/backend/internal/session/repository"
)

type failingRepo struct {
	*repository.MemoryRepository
	getErr    error
	deleteErr error
}

func (f *failingRepo) GetByIDHash(ctx context.Context, idHash string) (*domain.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryRepository.GetByIDHash(ctx, idHash)
}

func (f *failingRepo) Delete(ctx context.Context, idHash string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryRepository.Delete(ctx, idHash)
}

func TestStore_CreateAndGet(t *testing.T) {
	repo := repository.NewMemoryRepository()
	now := time.Unix(1010, 0)
	store := NewStore(repo, time.Second, func() time.Time { return now })

	sess, err := store.Create(context.Background(), "u1", "s1", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(sess.ID) < 43 {
		t.Errorf("session id %q is shorter than 256 bits of base64url", sess.ID)
	}
	if sess.AuthStrength != domain.AuthStrengthBillingSSO {
		t.Errorf("AuthStrength = %q", sess.AuthStrength)
	}
	if !sess.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", sess.ExpiresAt, now.Add(time.Hour))
	}
	if stored, _ := repo.GetByIDHash(context.Background(), sess.ID); stored != nil {
		t.Error("raw session id must not be a storage key")
	}
	if stored, _ := repo.GetByIDHash(context.Background(), security.HashToken(sess.ID)); stored == nil {
		t.Error("session should be stored under the hash of its id")
	}

	got, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID != sess.ID || got.SubjectID != "u1" || got.ServiceID != "s1" {
		t.Errorf("Get = %+v", got)
	}
}

func TestStore_ExpiryMonotonicity(t *testing.T) {
	repo := repository.NewMemoryRepository()
	now := time.Unix(1000, 0)
	store := NewStore(repo, 0, func() time.Time { return now })

	sess, err := store.Create(context.Background(), "u1", "s1", 60*time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	expiresAt := sess.ExpiresAt

	for _, at := range []time.Time{expiresAt.Add(-time.Minute), expiresAt.Add(-time.Nanosecond)} {
		now = at
		got, err := store.Get(context.Background(), sess.ID)
		if err != nil || got == nil {
			t.Fatalf("Get at %v = %v, %v; want live session", at, got, err)
		}
	}

	now = expiresAt
	got, err := store.Get(context.Background(), sess.ID)
	if err != nil || got != nil {
		t.Fatalf("Get at expiry = %v, %v; want nil, nil", got, err)
	}
	if repo.Len() != 0 {
		t.Error("expired session should be deleted by the lookup that observed it")
	}

	now = expiresAt.Add(-time.Minute)
	if got, _ := store.Get(context.Background(), sess.ID); got != nil {
		t.Error("deleted session must stay gone")
	}
}

func TestStore_GetUnknownAndEmpty(t *testing.T) {
	store := NewStore(repository.NewMemoryRepository(), 0, nil)
	for _, id := range []string{"", "unknown"} {
		got, err := store.Get(context.Background(), id)
		if err != nil || got != nil {
			t.Errorf("Get(%q) = %v, %v; want nil, nil", id, got, err)
		}
	}
}

func TestStore_GetStorageFailure(t *testing.T) {
	repo := &failingRepo{MemoryRepository: repository.NewMemoryRepository(), getErr: errors.New("timeout")}
	store := NewStore(repo, 0, nil)
	if _, err := store.Get(context.Background(), "x"); !errors.Is(err, db.ErrStorageUnavailable) {
		t.Errorf("error = %v, want ErrStorageUnavailable", err)
	}
}

func TestStore_ExpiredDeleteFailureStillAbsent(t *testing.T) {
	repo := &failingRepo{MemoryRepository: repository.NewMemoryRepository(), deleteErr: errors.New("timeout")}
	now := time.Unix(1000, 0)
	store := NewStore(repo, 0, func() time.Time { return now })
	sess, err := store.Create(context.Background(), "u1", "s1", time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	now = now.Add(time.Second)
	got, err := store.Get(context.Background(), sess.ID)
	if err != nil || got != nil {
		t.Errorf("Get = %v, %v; want nil, nil", got, err)
	}
}

func TestStore_Delete(t *testing.T) {
	repo := repository.NewMemoryRepository()
	store := NewStore(repo, 0, nil)
	sess, err := store.Create(context.Background(), "u1", "s1", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != DefaultTTL {
		t.Errorf("ttl = %v, want DefaultTTL", got)
	}
	if err := store.Delete(context.Background(), sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(context.Background(), sess.ID); got != nil {
		t.Error("session should be gone after Delete")
	}
	if err := store.Delete(context.Background(), ""); err != nil {
		t.Errorf("Delete empty: %v", err)
	}
}
