package alerts

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Alert kinds.
const (
	KindWentOffline = "went_offline"
	KindRecovered   = "recovered"
)

// ErrNotFound indicates an unknown alert id.
var ErrNotFound = errors.New("alert not found")

// Alert is one liveness transition event recorded for a device.
type Alert struct {
	ID           string     `json:"id"`
	DeviceID     string     `json:"device_id"`
	Kind         string     `json:"kind"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
	Acknowledged bool       `json:"acknowledged"`
	AckedAt      *time.Time `json:"acked_at,omitempty"`
}

// Validate checks alert invariants.
func (a Alert) Validate() error {
	if a.ID == "" {
		return errors.New("alert: empty id")
	}
	if a.DeviceID == "" {
		return errors.New("alert: empty device id")
	}
	if a.Kind != KindWentOffline && a.Kind != KindRecovered {
		return errors.New("alert: invalid kind")
	}
	if a.Timestamp.IsZero() {
		return errors.New("alert: zero timestamp")
	}
	return nil
}

// BuildID derives a stable alert id from the device, kind and instant.
func BuildID(deviceID, kind string, at time.Time) string {
	sum := sha1.Sum([]byte(deviceID + "|" + kind + "|" + at.UTC().Format(time.RFC3339Nano)))
	return "alert-" + hex.EncodeToString(sum[:8])
}

// OfflineMessage renders the dashboard text for a went-offline alert.
func OfflineMessage(deviceName, deviceAddress string) string {
	return fmt.Sprintf("L'équipement %s (%s) est hors ligne", deviceName, deviceAddress)
}

// RecoveredMessage renders the dashboard text for a recovery alert.
func RecoveredMessage(deviceName, deviceAddress string) string {
	return fmt.Sprintf("L'équipement %s (%s) est revenu en ligne", deviceName, deviceAddress)
}
