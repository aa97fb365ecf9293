package repository

import (
	"context"
	"database/sql"
	"errors"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
// Calls join the transaction carried by ctx, if any.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const getSession = `SELECT subject_id, service_id, auth_strength, created_at, expires_at
FROM sessions WHERE id_hash = $1`

// GetByIDHash returns the session for idHash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByIDHash(ctx context.Context, idHash string) (*domain.Session, error) {
	var s domain.Session
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, getSession, idHash).
		Scan(&s.SubjectID, &s.ServiceID, &s.AuthStrength, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

const createSession = `INSERT INTO sessions (id_hash, subject_id, service_id, auth_strength, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Create persists the session under idHash.
func (r *PostgresRepository) Create(ctx context.Context, idHash string, s *domain.Session) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, createSession,
		idHash, s.SubjectID, s.ServiceID, s.AuthStrength, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	return err
}

// Delete removes the session row. Deleting a missing row is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, idHash string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = $1`, idHash)
	return err
}
