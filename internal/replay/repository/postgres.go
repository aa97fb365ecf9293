package repository

import (
	"context"
	"database/sql"
	"time"

	"customer-panel/backend/internal/replay/domain"
)

// PostgresRepository always writes through the pool, never through a transaction carried by ctx:
// a consumed token id must stay committed whatever happens to the surrounding request.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a consumed-token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertConsumedToken = `INSERT INTO consumed_tokens (token_id, expires_at, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (token_id) DO NOTHING`

// Insert relies on the primary key: of N concurrent inserts for one token id exactly one affects a row.
func (r *PostgresRepository) Insert(ctx context.Context, t *domain.ConsumedToken) (bool, error) {
	res, err := r.db.ExecContext(ctx, insertConsumedToken, t.TokenID, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const deleteExpiredTokens = `DELETE FROM consumed_tokens WHERE expires_at <= $1`

// DeleteExpired removes consumed token rows that can no longer match a valid token.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredTokens, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
