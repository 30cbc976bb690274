package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	alertapp "dvrwatch/internal/alerts/application"
	alerts "dvrwatch/internal/alerts/domain"
	heartbeats "dvrwatch/internal/heartbeats/domain"
	liveness "dvrwatch/internal/liveness/domain"
	"dvrwatch/internal/observability/metrics"
	registry "dvrwatch/internal/registry/domain"
)

// DeviceStore is the device persistence surface the monitor needs.
// The ForUpdate methods lock the device row so ingest and sweep never
// interleave their read-classify-write cycles for the same device.
type DeviceStore interface {
	GetForUpdateByID(ctx context.Context, tx *sql.Tx, id string) (*registry.Device, error)
	GetForUpdateByAddress(ctx context.Context, tx *sql.Tx, address string) (*registry.Device, error)
	TouchLastSeen(ctx context.Context, tx *sql.Tx, id string, at time.Time) (bool, error)
	ListActive(ctx context.Context) ([]registry.Device, error)
}

// HeartbeatStore appends heartbeat records.
type HeartbeatStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, record *heartbeats.Record) error
}

// AlertWriter records liveness transition alerts.
type AlertWriter interface {
	CreateTx(ctx context.Context, tx *sql.Tx, alert *alerts.Alert) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Monitor runs the liveness engine: heartbeat ingest and the periodic
// offline sweep share its transactional read-classify-write cycle.
type Monitor struct {
	db         *sql.DB
	devices    DeviceStore
	heartbeats HeartbeatStore
	alerts     AlertWriter
	dedup      *alertapp.Deduplicator
	publisher  alertapp.Publisher
	logger     *log.Logger
	clock      Clock
	cfg        Config
}

// MonitorOption customizes the monitor.
type MonitorOption func(*Monitor)

// WithPublisher assigns the post-commit event publisher.
func WithPublisher(publisher alertapp.Publisher) MonitorOption {
	return func(m *Monitor) {
		m.publisher = publisher
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) MonitorOption {
	return func(m *Monitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMonitor constructs the liveness monitor.
func NewMonitor(db *sql.DB, devices DeviceStore, hbStore HeartbeatStore, alertStore AlertWriter, dedup *alertapp.Deduplicator, cfg Config, opts ...MonitorOption) (*Monitor, error) {
	if db == nil {
		return nil, errors.New("monitor: nil db")
	}
	if devices == nil {
		return nil, errors.New("monitor: nil device store")
	}
	if hbStore == nil {
		return nil, errors.New("monitor: nil heartbeat store")
	}
	if alertStore == nil {
		return nil, errors.New("monitor: nil alert store")
	}
	if dedup == nil {
		return nil, errors.New("monitor: nil deduplicator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		db:         db,
		devices:    devices,
		heartbeats: hbStore,
		alerts:     alertStore,
		dedup:      dedup,
		logger:     log.Default(),
		clock:      systemClock{},
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// HeartbeatInput is one incoming heartbeat. Either DeviceID or Address
// must be set; DeviceID wins when both are present. A zero At means
// the server receive time.
type HeartbeatInput struct {
	DeviceID  string
	Address   string
	At        time.Time
	Outcome   string
	LatencyMs *float64
	Note      string
}

// ErrInvalidInput marks malformed heartbeat payloads.
var ErrInvalidInput = errors.New("invalid heartbeat input")

// Validate checks input invariants. An empty outcome defaults to success.
func (in *HeartbeatInput) Validate() error {
	if in == nil {
		return fmt.Errorf("%w: nil", ErrInvalidInput)
	}
	if in.DeviceID == "" && in.Address == "" {
		return fmt.Errorf("%w: device id or address required", ErrInvalidInput)
	}
	if in.Outcome == "" {
		in.Outcome = heartbeats.OutcomeSuccess
	}
	switch in.Outcome {
	case heartbeats.OutcomeSuccess, heartbeats.OutcomeTimeout, heartbeats.OutcomeError:
	default:
		return fmt.Errorf("%w: outcome must be success, timeout or error", ErrInvalidInput)
	}
	if in.LatencyMs != nil && *in.LatencyMs < 0 {
		return fmt.Errorf("%w: negative latency", ErrInvalidInput)
	}
	return nil
}

// Ack is the response returned to a device after a heartbeat.
type Ack struct {
	DeviceID   string    `json:"device_id"`
	Name       string    `json:"name"`
	Online     bool      `json:"online"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecordHeartbeat ingests one heartbeat: it appends the history record,
// advances last_seen monotonically and raises a recovery alert when the
// device was classified offline before this beat. The whole cycle runs
// in one transaction under the device row lock. An unknown or inactive
// device yields registry.ErrNotFound.
func (m *Monitor) RecordHeartbeat(ctx context.Context, input HeartbeatInput) (*Ack, error) {
	if m == nil {
		return nil, errors.New("monitor: nil")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	at := input.At
	if at.IsZero() {
		at = m.clock.Now()
	}
	at = at.UTC()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	device, err := m.lockDevice(ctx, tx, input)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	if device == nil {
		return nil, registry.ErrNotFound
	}

	wasOnline := liveness.Classify(device.LastSeen, at, m.cfg.OfflineTimeout).Online()

	record := &heartbeats.Record{
		DeviceID:  device.ID,
		Timestamp: at,
		Outcome:   input.Outcome,
		LatencyMs: input.LatencyMs,
		Note:      input.Note,
	}
	if err := m.heartbeats.InsertTx(ctx, tx, record); err != nil {
		return nil, classifyStoreErr(err)
	}

	advanced, err := m.devices.TouchLastSeen(ctx, tx, device.ID, at)
	if err != nil {
		return nil, classifyStoreErr(err)
	}

	// A stale beat (advanced == false) never moves the device back
	// online, so it cannot produce a recovery.
	var recovery *alerts.Alert
	if !wasOnline && advanced {
		recovery = &alerts.Alert{
			ID:        alerts.BuildID(device.ID, alerts.KindRecovered, at),
			DeviceID:  device.ID,
			Kind:      alerts.KindRecovered,
			Message:   alerts.RecoveredMessage(device.Name, device.Address),
			Timestamp: at,
		}
		if err := m.alerts.CreateTx(ctx, tx, recovery); err != nil {
			return nil, classifyStoreErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyStoreErr(err)
	}

	if recovery != nil {
		m.publish(ctx, alerts.KindRecovered, *recovery, device)
	}

	effective := device.LastSeen
	if advanced {
		effective = &at
	}
	status := liveness.Classify(effective, m.clock.Now().UTC(), m.cfg.OfflineTimeout)
	return &Ack{
		DeviceID:   device.ID,
		Name:       device.Name,
		Online:     status.Online(),
		Status:     status.Label(),
		ReceivedAt: at,
	}, nil
}

func (m *Monitor) lockDevice(ctx context.Context, tx *sql.Tx, input HeartbeatInput) (*registry.Device, error) {
	if input.DeviceID != "" {
		return m.devices.GetForUpdateByID(ctx, tx, input.DeviceID)
	}
	return m.devices.GetForUpdateByAddress(ctx, tx, input.Address)
}

func (m *Monitor) publish(ctx context.Context, eventType string, alert alerts.Alert, device *registry.Device) {
	metrics.IncAlertEvent(eventType)
	if m.publisher == nil || device == nil {
		return
	}
	m.publisher.Publish(ctx, alertapp.Event{
		Type:  eventType,
		Alert: alert,
		Device: alertapp.DeviceInfo{
			ID:           device.ID,
			Name:         device.Name,
			Kind:         device.Kind,
			Address:      device.Address,
			ContactEmail: device.ContactEmail,
		},
	})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
