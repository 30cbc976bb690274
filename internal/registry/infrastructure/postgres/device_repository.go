package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	registry "dvrwatch/internal/registry/domain"
)

const defaultDevicesTable = "devices"

// DBTX abstracts *sql.DB and *sql.Tx so repository calls can join a caller-owned
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const deviceColumns = `id, name, kind, address, port, contact_email, last_seen, active, created_at, updated_at`

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db    DBTX
	table string
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db DBTX, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDevicesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Create inserts a device.
func (r *DeviceRepository) Create(ctx context.Context, device *registry.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = device.CreatedAt
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, name, kind, address, port, contact_email, last_seen, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.Name, device.Kind, device.Address, device.Port,
		device.ContactEmail, nullableTime(device.LastSeen), device.Active,
		device.CreatedAt, device.UpdatedAt)
	return err
}

// Update rewrites the identity fields of a device. LastSeen is never touched here;
// only the heartbeat ingest path may move it.
func (r *DeviceRepository) Update(ctx context.Context, device *registry.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET name = $2, kind = $3, address = $4, port = $5, contact_email = $6, updated_at = $7
WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query,
		device.ID, device.Name, device.Kind, device.Address, device.Port,
		device.ContactEmail, time.Now().UTC())
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// Deactivate soft-deletes a device. Rows referenced by history are never removed.
func (r *DeviceRepository) Deactivate(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if id == "" {
		return errors.New("device repo: empty id")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET active = FALSE, updated_at = $2
WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// GetByID loads a device by id, active or not.
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if id == "" {
		return nil, errors.New("device repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, deviceColumns, r.table)
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

// FindByAddress resolves an active device by network address.
func (r *DeviceRepository) FindByAddress(ctx context.Context, address string) (*registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if address == "" {
		return nil, errors.New("device repo: empty address")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE address = $1 AND active = TRUE
LIMIT 1`, deviceColumns, r.table)
	return scanDevice(r.db.QueryRowContext(ctx, query, address))
}

// ListActive returns all active devices ordered by name.
func (r *DeviceRepository) ListActive(ctx context.Context) ([]registry.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE active = TRUE
ORDER BY name ASC`, deviceColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registry.Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetForUpdateByID loads an active device by id with its row locked for the
// duration of the surrounding transaction. tx must not be nil.
func (r *DeviceRepository) GetForUpdateByID(ctx context.Context, tx *sql.Tx, id string) (*registry.Device, error) {
	if r == nil {
		return nil, errors.New("device repo: nil")
	}
	if tx == nil {
		return nil, errors.New("device repo: nil tx")
	}
	if id == "" {
		return nil, errors.New("device repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1 AND active = TRUE
FOR UPDATE`, deviceColumns, r.table)
	return scanDevice(tx.QueryRowContext(ctx, query, id))
}

// GetForUpdateByAddress is GetForUpdateByID keyed by network address.
func (r *DeviceRepository) GetForUpdateByAddress(ctx context.Context, tx *sql.Tx, address string) (*registry.Device, error) {
	if r == nil {
		return nil, errors.New("device repo: nil")
	}
	if tx == nil {
		return nil, errors.New("device repo: nil tx")
	}
	if address == "" {
		return nil, errors.New("device repo: empty address")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE address = $1 AND active = TRUE
FOR UPDATE`, deviceColumns, r.table)
	return scanDevice(tx.QueryRowContext(ctx, query, address))
}

// TouchLastSeen advances last_seen to at inside the caller's transaction. The update
// is monotonic: an out-of-order timestamp leaves the row unchanged and returns false.
func (r *DeviceRepository) TouchLastSeen(ctx context.Context, tx *sql.Tx, id string, at time.Time) (bool, error) {
	if r == nil {
		return false, errors.New("device repo: nil")
	}
	if tx == nil {
		return false, errors.New("device repo: nil tx")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET last_seen = $2, updated_at = $2
WHERE id = $1 AND (last_seen IS NULL OR last_seen < $2)`, r.table)
	result, err := tx.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row *sql.Row) (*registry.Device, error) {
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

func scanDeviceRow(scanner rowScanner) (*registry.Device, error) {
	var device registry.Device
	var lastSeen sql.NullTime
	if err := scanner.Scan(
		&device.ID,
		&device.Name,
		&device.Kind,
		&device.Address,
		&device.Port,
		&device.ContactEmail,
		&lastSeen,
		&device.Active,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		at := lastSeen.Time.UTC()
		device.LastSeen = &at
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC()
}

func ensureOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return registry.ErrNotFound
	}
	return nil
}
