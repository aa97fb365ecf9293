package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/servicestate/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a service state repository that uses the given db for persistence.
// Calls join the transaction carried by ctx, if any.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const getServiceState = `SELECT service_id, status, plan, features, mail_enabled, dns_enabled, migration_enabled, quotas, updated_at
FROM service_states WHERE service_id = $1`

// GetByServiceID returns the state for serviceID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByServiceID(ctx context.Context, serviceID string) (*domain.ServiceState, error) {
	var (
		s                domain.ServiceState
		status           string
		features, quotas []byte
	)
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, getServiceState, serviceID).Scan(
		&s.ServiceID, &status, &s.Plan, &features,
		&s.Features.Mail, &s.Features.DNS, &s.Features.Migration, &quotas, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = domain.Status(status)
	if s.Features.Extra, err = decodeObject(features); err != nil {
		return nil, fmt.Errorf("service state %s: features: %w", serviceID, err)
	}
	if s.Quotas, err = decodeObject(quotas); err != nil {
		return nil, fmt.Errorf("service state %s: quotas: %w", serviceID, err)
	}
	return &s, nil
}

const upsertServiceState = `INSERT INTO service_states
    (service_id, status, plan, features, mail_enabled, dns_enabled, migration_enabled, quotas, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9)
ON CONFLICT (service_id) DO UPDATE SET
    status = EXCLUDED.status,
    plan = EXCLUDED.plan,
    features = EXCLUDED.features,
    mail_enabled = EXCLUDED.mail_enabled,
    dns_enabled = EXCLUDED.dns_enabled,
    migration_enabled = EXCLUDED.migration_enabled,
    quotas = EXCLUDED.quotas,
    updated_at = EXCLUDED.updated_at`

// Upsert inserts s or replaces the whole existing row.
func (r *PostgresRepository) Upsert(ctx context.Context, s *domain.ServiceState) error {
	args, err := stateArgs(s)
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, r.db).ExecContext(ctx, upsertServiceState, args...)
	return err
}

const insertServiceStateIfAbsent = `INSERT INTO service_states
    (service_id, status, plan, features, mail_enabled, dns_enabled, migration_enabled, quotas, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9)
ON CONFLICT (service_id) DO NOTHING`

// InsertIfAbsent inserts s unless a row for s.ServiceID exists.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, s *domain.ServiceState) (bool, error) {
	args, err := stateArgs(s)
	if err != nil {
		return false, err
	}
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, insertServiceStateIfAbsent, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func stateArgs(s *domain.ServiceState) ([]any, error) {
	features, err := encodeObject(s.Features.Extra)
	if err != nil {
		return nil, fmt.Errorf("service state %s: features: %w", s.ServiceID, err)
	}
	quotas, err := encodeObject(s.Quotas)
	if err != nil {
		return nil, fmt.Errorf("service state %s: quotas: %w", s.ServiceID, err)
	}
	return []any{
		s.ServiceID, string(s.Status), s.Plan, features,
		s.Features.Mail, s.Features.DNS, s.Features.Migration, quotas, s.UpdatedAt.UTC(),
	}, nil
}

// encodeObject renders m as a JSON object string; nil becomes "{}".
func encodeObject(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeObject(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
