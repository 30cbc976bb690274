package registry

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Device kinds as reported by the fleet.
const (
	KindDVR    = "dvr"
	KindCamera = "camera"
)

// Device represents a monitored network endpoint expected to heartbeat periodically.
type Device struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Kind         string     `json:"kind"`
	Address      string     `json:"address"`
	Port         int        `json:"port"`
	ContactEmail string     `json:"contact_email,omitempty"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if d.Kind != KindDVR && d.Kind != KindCamera {
		return fmt.Errorf("%w: kind must be dvr or camera", ErrInvalid)
	}
	if d.Address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalid)
	}
	if net.ParseIP(d.Address) == nil {
		return fmt.Errorf("%w: address must be an IP", ErrInvalid)
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("%w: invalid port", ErrInvalid)
	}
	return nil
}

// DeviceRepository manages device persistence.
type DeviceRepository interface {
	Create(ctx context.Context, device *Device) error
	Update(ctx context.Context, device *Device) error
	Deactivate(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Device, error)
	FindByAddress(ctx context.Context, address string) (*Device, error)
	ListActive(ctx context.Context) ([]Device, error)
}
