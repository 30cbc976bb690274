package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "dvrwatch/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

const alertColumns = `id, device_id, kind, message, ts, acknowledged, acked_at`

// AlertRepository is a Postgres implementation for alert events.
type AlertRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*AlertRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *AlertRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB, opts ...RepositoryOption) *AlertRepository {
	repo := &AlertRepository{db: db, table: defaultAlertsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CreateTx inserts an alert inside the caller's transaction.
func (r *AlertRepository) CreateTx(ctx context.Context, tx *sql.Tx, alert *alerts.Alert) error {
	if r == nil {
		return errors.New("alert repo: nil")
	}
	if tx == nil {
		return errors.New("alert repo: nil tx")
	}
	return r.create(ctx, tx, alert)
}

// Create inserts an alert outside any transaction.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	return r.create(ctx, r.db, alert)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *AlertRepository) create(ctx context.Context, db execer, alert *alerts.Alert) error {
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if err := alert.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, device_id, kind, message, ts, acknowledged, acked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)
	_, err := db.ExecContext(ctx, query,
		alert.ID, alert.DeviceID, alert.Kind, alert.Message, alert.Timestamp.UTC(),
		alert.Acknowledged, nullableTime(alert.AckedAt))
	return err
}

// GetByID loads an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if id == "" {
		return nil, errors.New("alert repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, alertColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return alert, nil
}

// ExistsKindSince reports whether any alert of the given kind exists for the device
// with ts strictly after since, acknowledged or not. This is the dedup window query.
func (r *AlertRepository) ExistsKindSince(ctx context.Context, deviceID, kind string, since time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("alert repo: nil db")
	}
	if deviceID == "" || kind == "" {
		return false, errors.New("alert repo: invalid query")
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s
	WHERE device_id = $1 AND kind = $2 AND ts > $3
)`, r.table)
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, kind, since.UTC()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListRecent returns the newest alerts across all devices.
func (r *AlertRepository) ListRecent(ctx context.Context, limit int) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY ts DESC
LIMIT $1`, alertColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListByDevice returns alerts for one device, newest first.
func (r *AlertRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("alert repo: empty device id")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE device_id = $1
ORDER BY ts DESC
LIMIT $2`, alertColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// CountUnacknowledged returns the number of unacknowledged alerts.
func (r *AlertRepository) CountUnacknowledged(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE acknowledged = FALSE`, r.table)
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountOfflineSince counts went-offline alerts for a device in [from, to).
func (r *AlertRepository) CountOfflineSince(ctx context.Context, deviceID string, from, to time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	if deviceID == "" {
		return 0, errors.New("alert repo: empty device id")
	}
	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE device_id = $1 AND kind = $2 AND ts >= $3 AND ts < $4`, r.table)
	var count int64
	if err := r.db.QueryRowContext(ctx, query, deviceID, alerts.KindWentOffline, from.UTC(), to.UTC()).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkAcknowledged flips the acknowledged flag. Acknowledging an already
// acknowledged alert is a no-op, not an error.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if id == "" {
		return errors.New("alert repo: empty id")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET acknowledged = TRUE, acked_at = $2
WHERE id = $1 AND acknowledged = FALSE`, r.table)
	_, err := r.db.ExecContext(ctx, query, id, at.UTC())
	return err
}

// DeleteAcknowledgedOlderThan purges acknowledged alerts with ts < cutoff and
// reports the deleted count. Unacknowledged alerts are never touched.
func (r *AlertRepository) DeleteAcknowledgedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE acknowledged = TRUE AND ts < $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(scanner rowScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var ackedAt sql.NullTime
	if err := scanner.Scan(
		&alert.ID,
		&alert.DeviceID,
		&alert.Kind,
		&alert.Message,
		&alert.Timestamp,
		&alert.Acknowledged,
		&ackedAt,
	); err != nil {
		return nil, err
	}
	alert.Timestamp = alert.Timestamp.UTC()
	if ackedAt.Valid {
		at := ackedAt.Time.UTC()
		alert.AckedAt = &at
	}
	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC()
}
