package application

import (
	"context"
	"errors"
	"time"

	alerts "dvrwatch/internal/alerts/domain"
)

// AlertWindowReader answers the dedup window query against alert history.
type AlertWindowReader interface {
	ExistsKindSince(ctx context.Context, deviceID, kind string, since time.Time) (bool, error)
}

// Deduplicator decides whether a new alert may be recorded given recent alert
// history for the device. It is the single authority consulted before a
// went-offline alert is created.
type Deduplicator struct {
	history AlertWindowReader
	window  time.Duration
}

// NewDeduplicator constructs a Deduplicator.
func NewDeduplicator(history AlertWindowReader, window time.Duration) (*Deduplicator, error) {
	if history == nil {
		return nil, errors.New("dedup: nil history reader")
	}
	if window <= 0 {
		return nil, errors.New("dedup: window must be positive")
	}
	return &Deduplicator{history: history, window: window}, nil
}

// Window returns the configured dedup window.
func (d *Deduplicator) Window() time.Duration {
	if d == nil {
		return 0
	}
	return d.window
}

// ShouldRaise reports whether a new alert of the given kind may be recorded at now.
// Recovery alerts are never suppressed; a went-offline alert is suppressed while a
// previous one for the device sits inside the rolling window, acknowledged or not.
func (d *Deduplicator) ShouldRaise(ctx context.Context, deviceID, kind string, now time.Time) (bool, error) {
	if d == nil || d.history == nil {
		return false, errors.New("dedup: nil")
	}
	if deviceID == "" {
		return false, errors.New("dedup: empty device id")
	}
	if kind == alerts.KindRecovered {
		return true, nil
	}
	exists, err := d.history.ExistsKindSince(ctx, deviceID, alerts.KindWentOffline, now.Add(-d.window))
	if err != nil {
		return false, err
	}
	return !exists, nil
}
