package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	heartbeats "dvrwatch/internal/heartbeats/domain"
)

const defaultHeartbeatsTable = "heartbeats"

// HeartbeatRepository is a Postgres implementation for heartbeat history.
type HeartbeatRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*HeartbeatRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *HeartbeatRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewHeartbeatRepository constructs a repository.
func NewHeartbeatRepository(db *sql.DB, opts ...RepositoryOption) *HeartbeatRepository {
	repo := &HeartbeatRepository{db: db, table: defaultHeartbeatsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertTx appends a heartbeat record inside the caller's transaction.
func (r *HeartbeatRepository) InsertTx(ctx context.Context, tx *sql.Tx, record *heartbeats.Record) error {
	if r == nil {
		return errors.New("heartbeat repo: nil")
	}
	if tx == nil {
		return errors.New("heartbeat repo: nil tx")
	}
	if record == nil {
		return errors.New("heartbeat repo: nil record")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (device_id, ts, outcome, latency_ms, note)
VALUES ($1, $2, $3, $4, $5)`, r.table)
	_, err := tx.ExecContext(ctx, query,
		record.DeviceID, record.Timestamp.UTC(), record.Outcome, record.LatencyMs, record.Note)
	return err
}

// ListByDevice returns heartbeat records for a device, newest first.
func (r *HeartbeatRepository) ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]heartbeats.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("heartbeat repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("heartbeat repo: empty device id")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
SELECT id, device_id, ts, outcome, latency_ms, note
FROM %s
WHERE device_id = $1
ORDER BY ts DESC
LIMIT $2 OFFSET $3`, r.table)
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []heartbeats.Record
	for rows.Next() {
		var record heartbeats.Record
		var latency sql.NullFloat64
		var note sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.DeviceID,
			&record.Timestamp,
			&record.Outcome,
			&latency,
			&note,
		); err != nil {
			return nil, err
		}
		record.Timestamp = record.Timestamp.UTC()
		if latency.Valid {
			value := latency.Float64
			record.LatencyMs = &value
		}
		record.Note = note.String
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountSince counts heartbeats for a device in [from, to).
func (r *HeartbeatRepository) CountSince(ctx context.Context, deviceID string, from, to time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("heartbeat repo: nil db")
	}
	if deviceID == "" {
		return 0, errors.New("heartbeat repo: empty device id")
	}
	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE device_id = $1 AND ts >= $2 AND ts < $3`, r.table)
	var count int64
	if err := r.db.QueryRowContext(ctx, query, deviceID, from.UTC(), to.UTC()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteOlderThan purges records with ts < cutoff and reports the deleted count.
func (r *HeartbeatRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("heartbeat repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE ts < $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
