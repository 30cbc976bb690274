package application

import (
	"context"
	"errors"
	"time"

	alerts "dvrwatch/internal/alerts/domain"
	liveness "dvrwatch/internal/liveness/domain"
	"dvrwatch/internal/observability/metrics"
	registry "dvrwatch/internal/registry/domain"
)

// SweepSummary reports one sweep pass.
type SweepSummary struct {
	Checked int
	Offline int
	Raised  int
	Errors  int
}

// SweepOnce classifies every active device and raises deduplicated
// went-offline alerts. Each device runs in its own transaction under
// the device row lock; one device's failure does not stop the sweep.
func (m *Monitor) SweepOnce(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary
	if m == nil {
		return summary, errors.New("monitor: nil")
	}

	devices, err := m.devices.ListActive(ctx)
	if err != nil {
		return summary, err
	}

	online := 0
	for i := range devices {
		device := devices[i]
		summary.Checked++
		raised, offline, err := m.sweepDevice(ctx, device.ID)
		if err != nil {
			summary.Errors++
			m.logger.Printf("sweep: device %s: %v", device.ID, err)
			continue
		}
		if offline {
			summary.Offline++
		} else {
			online++
		}
		if raised {
			summary.Raised++
		}
	}

	metrics.AddSweepDeviceErrors(summary.Errors)
	metrics.SetFleetStatus(online, summary.Offline)
	return summary, nil
}

// sweepDevice re-reads the device under lock so a heartbeat committed
// after ListActive cannot be misclassified.
func (m *Monitor) sweepDevice(ctx context.Context, deviceID string) (raised, offline bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	now := m.clock.Now().UTC()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, classifyStoreErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	device, err := m.devices.GetForUpdateByID(ctx, tx, deviceID)
	if err != nil {
		return false, false, classifyStoreErr(err)
	}
	if device == nil {
		// Deactivated between ListActive and the lock.
		return false, false, nil
	}

	if liveness.Classify(device.LastSeen, now, m.cfg.OfflineTimeout).Online() {
		return false, false, tx.Commit()
	}

	ok, err := m.dedup.ShouldRaise(ctx, device.ID, alerts.KindWentOffline, now)
	if err != nil {
		return false, true, classifyStoreErr(err)
	}
	if !ok {
		return false, true, tx.Commit()
	}

	alert := &alerts.Alert{
		ID:        alerts.BuildID(device.ID, alerts.KindWentOffline, now),
		DeviceID:  device.ID,
		Kind:      alerts.KindWentOffline,
		Message:   alerts.OfflineMessage(device.Name, device.Address),
		Timestamp: now,
	}
	if err := m.alerts.CreateTx(ctx, tx, alert); err != nil {
		return false, true, classifyStoreErr(err)
	}
	if err := tx.Commit(); err != nil {
		return false, true, classifyStoreErr(err)
	}

	m.publish(ctx, alerts.KindWentOffline, *alert, device)
	return true, true, nil
}

// Snapshot returns the current classification of every active device
// without taking locks. Used by the status API.
func (m *Monitor) Snapshot(ctx context.Context) ([]DeviceStatus, error) {
	if m == nil {
		return nil, errors.New("monitor: nil")
	}
	devices, err := m.devices.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now().UTC()
	statuses := make([]DeviceStatus, 0, len(devices))
	for i := range devices {
		statuses = append(statuses, buildDeviceStatus(devices[i], now, m.cfg.OfflineTimeout))
	}
	return statuses, nil
}

// DeviceStatus is one device's classification for the dashboard.
type DeviceStatus struct {
	Device   registry.Device
	Status   liveness.Status
	Elapsed  string
	LastSeen string
}

func buildDeviceStatus(device registry.Device, now time.Time, timeout time.Duration) DeviceStatus {
	status := liveness.Classify(device.LastSeen, now, timeout)
	lastSeen := ""
	if device.LastSeen != nil && !device.LastSeen.IsZero() {
		lastSeen = device.LastSeen.UTC().Format(time.RFC3339)
	}
	return DeviceStatus{
		Device:   device,
		Status:   status,
		Elapsed:  liveness.ElapsedLabel(device.LastSeen, now),
		LastSeen: lastSeen,
	}
}
