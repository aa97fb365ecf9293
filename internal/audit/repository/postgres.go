package repository

import (
	"context"
	"database/sql"
	"errors"

	"customer-panel/backend/internal/audit/domain"
	"customer-panel/backend/internal/db"
)

// chainLockKey is the advisory lock id that serializes audit appends.
const chainLockKey int64 = 0x617564697463

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by conn.
// Append must run inside a transaction carried by ctx; the advisory lock is released when it ends.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const lastDigest = `SELECT self_digest FROM audit_records ORDER BY id DESC LIMIT 1`

const insertRecord = `INSERT INTO audit_records
(ts, action, actor_sub, actor_role, service_id, result, request_id, actor_ip, details_json, prev_digest, self_digest)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

func (r *PostgresRepository) Append(ctx context.Context, rec *domain.Record, seal SealFunc) error {
	conn := db.Conn(ctx, r.db)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return err
	}
	var prev string
	if err := conn.QueryRowContext(ctx, lastDigest).Scan(&prev); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	seal(rec, prev)
	return conn.QueryRowContext(ctx, insertRecord,
		rec.Timestamp, rec.Action, nullable(rec.ActorSubject), nullable(rec.ActorRole), nullable(rec.ServiceID),
		string(rec.Result), nullable(rec.RequestID), nullable(rec.ActorIP), rec.DetailsJSON,
		nullable(rec.PrevDigest), rec.SelfDigest,
	).Scan(&rec.ID)
}

const listAfter = `SELECT id, ts, action, actor_sub, actor_role, service_id, result, request_id, actor_ip,
details_json, prev_digest, self_digest
FROM audit_records WHERE id > $1 ORDER BY id LIMIT $2`

func (r *PostgresRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Record, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, listAfter, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		var (
			rec                                       domain.Record
			result                                    string
			sub, role, service, reqID, ip, prevDigest sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Action, &sub, &role, &service, &result, &reqID, &ip,
			&rec.DetailsJSON, &prevDigest, &rec.SelfDigest); err != nil {
			return nil, err
		}
		rec.ActorSubject = sub.String
		rec.ActorRole = role.String
		rec.ServiceID = service.String
		rec.Result = domain.Result(result)
		rec.RequestID = reqID.String
		rec.ActorIP = ip.String
		rec.PrevDigest = prevDigest.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
