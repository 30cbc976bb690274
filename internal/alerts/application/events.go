package application

import (
	"context"

	alerts "dvrwatch/internal/alerts/domain"
)

// Event is an alert lifecycle update fanned out to publishers.
type Event struct {
	Type   string       `json:"type"`
	Alert  alerts.Alert `json:"alert"`
	Device DeviceInfo   `json:"device"`
}

// DeviceInfo carries the device fields notification channels render.
type DeviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Address      string `json:"address"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// Publisher receives alert events after they are committed. Implementations must
// not block the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MultiPublisher fans events out to several publishers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher constructs a MultiPublisher.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish forwards the event to all publishers.
func (m *MultiPublisher) Publish(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	for _, publisher := range m.publishers {
		if publisher != nil {
			publisher.Publish(ctx, event)
		}
	}
}
