package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	alerts "dvrwatch/internal/alerts/domain"
	"dvrwatch/internal/audit"
)

// AlertStore is the persistence surface the service needs.
type AlertStore interface {
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	MarkAcknowledged(ctx context.Context, id string, at time.Time) error
	ListRecent(ctx context.Context, limit int) ([]alerts.Alert, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]alerts.Alert, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service handles alert reads and acknowledgment.
type Service struct {
	store AlertStore
	audit audit.Logger
	clock Clock
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

// NewService constructs an alert service.
func NewService(store AlertStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("alerts: nil store")
	}
	service := &Service{store: store, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Acknowledge marks an alert acknowledged. Acknowledging twice is a no-op.
func (s *Service) Acknowledge(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if alert.Acknowledged {
		return alert, nil
	}
	ackedAt := s.clock.Now().UTC()
	if err := s.store.MarkAcknowledged(ctx, id, ackedAt); err != nil {
		return nil, err
	}
	alert.Acknowledged = true
	alert.AckedAt = &ackedAt
	s.logAudit(ctx, alert)
	return alert, nil
}

// ListRecent returns the newest alerts across the fleet.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	return s.store.ListRecent(ctx, limit)
}

// ListByDevice returns the newest alerts for one device.
func (s *Service) ListByDevice(ctx context.Context, deviceID string, limit int) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if deviceID == "" {
		return nil, errors.New("alerts: device id required")
	}
	return s.store.ListByDevice(ctx, deviceID, limit)
}

func (s *Service) logAudit(ctx context.Context, alert *alerts.Alert) {
	if s == nil || s.audit == nil || alert == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"device_id": alert.DeviceID,
		"kind":      alert.Kind,
	})
	_ = s.audit.Log(ctx, audit.Entry{
		Action:       "alert.acknowledge",
		ResourceType: "alert",
		ResourceID:   alert.ID,
		Metadata:     meta,
		CreatedAt:    s.clock.Now().UTC(),
	})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
