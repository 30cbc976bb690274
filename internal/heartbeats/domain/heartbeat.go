package heartbeats

import (
	"errors"
	"time"
)

// Heartbeat outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Record is one received heartbeat. Records are append-only and immutable;
// they are only ever removed in bulk by the retention sweeper.
type Record struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	LatencyMs *float64  `json:"latency_ms,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Validate checks record invariants.
func (r Record) Validate() error {
	if r.DeviceID == "" {
		return errors.New("heartbeat: empty device id")
	}
	if r.Timestamp.IsZero() {
		return errors.New("heartbeat: zero timestamp")
	}
	switch r.Outcome {
	case OutcomeSuccess, OutcomeTimeout, OutcomeError:
	default:
		return errors.New("heartbeat: outcome must be success, timeout or error")
	}
	if r.LatencyMs != nil && *r.LatencyMs < 0 {
		return errors.New("heartbeat: negative latency")
	}
	return nil
}
