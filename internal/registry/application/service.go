package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"dvrwatch/internal/audit"
	registry "dvrwatch/internal/registry/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service manages the device registry.
type Service struct {
	devices registry.DeviceRepository
	audit   audit.Logger
	clock   Clock
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithAudit assigns an audit logger.
func WithAudit(logger audit.Logger) ServiceOption {
	return func(s *Service) {
		s.audit = logger
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a registry service.
func NewService(devices registry.DeviceRepository, opts ...ServiceOption) (*Service, error) {
	if devices == nil {
		return nil, errors.New("registry: nil device repository")
	}
	service := &Service{devices: devices, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// DeviceInput carries the editable device fields.
type DeviceInput struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Address      string `json:"address"`
	Port         int    `json:"port"`
	ContactEmail string `json:"contact_email"`
}

// Create registers a new device. The address must be unique among
// active devices.
func (s *Service) Create(ctx context.Context, input DeviceInput) (*registry.Device, error) {
	if s == nil {
		return nil, errors.New("registry: nil service")
	}
	existing, err := s.devices.FindByAddress(ctx, input.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, registry.ErrAddressTaken
	}

	now := s.clock.Now().UTC()
	device := &registry.Device{
		ID:           newDeviceID(),
		Name:         input.Name,
		Kind:         input.Kind,
		Address:      input.Address,
		Port:         input.Port,
		ContactEmail: input.ContactEmail,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "device.create", device.ID, device)
	return device, nil
}

// Update rewrites a device's identity fields. LastSeen is owned by the
// heartbeat ingest path and never changes here.
func (s *Service) Update(ctx context.Context, id string, input DeviceInput) (*registry.Device, error) {
	if s == nil {
		return nil, errors.New("registry: nil service")
	}
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, registry.ErrNotFound
	}

	if input.Address != device.Address {
		existing, err := s.devices.FindByAddress(ctx, input.Address)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, registry.ErrAddressTaken
		}
	}

	device.Name = input.Name
	device.Kind = input.Kind
	device.Address = input.Address
	device.Port = input.Port
	device.ContactEmail = input.ContactEmail
	device.UpdatedAt = s.clock.Now().UTC()
	if err := device.Validate(); err != nil {
		return nil, err
	}
	if err := s.devices.Update(ctx, device); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "device.update", device.ID, device)
	return device, nil
}

// Deactivate soft-deletes a device. Its history and alerts remain.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("registry: nil service")
	}
	if id == "" {
		return errors.New("registry: device id required")
	}
	if err := s.devices.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "device.deactivate", id, nil)
	return nil
}

// Get loads one device by id.
func (s *Service) Get(ctx context.Context, id string) (*registry.Device, error) {
	if s == nil {
		return nil, errors.New("registry: nil service")
	}
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, registry.ErrNotFound
	}
	return device, nil
}

// ListActive returns all active devices.
func (s *Service) ListActive(ctx context.Context) ([]registry.Device, error) {
	if s == nil {
		return nil, errors.New("registry: nil service")
	}
	return s.devices.ListActive(ctx)
}

func (s *Service) logAudit(ctx context.Context, action, deviceID string, device *registry.Device) {
	if s == nil || s.audit == nil {
		return
	}
	var meta json.RawMessage
	if device != nil {
		meta, _ = json.Marshal(map[string]any{
			"name":    device.Name,
			"kind":    device.Kind,
			"address": device.Address,
		})
	}
	_ = s.audit.Log(ctx, audit.Entry{
		Action:       action,
		ResourceType: "device",
		ResourceID:   deviceID,
		Metadata:     meta,
		CreatedAt:    s.clock.Now().UTC(),
	})
}

func newDeviceID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "dev-" + hex.EncodeToString(buf)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
