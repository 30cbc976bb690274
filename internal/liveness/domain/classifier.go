package liveness

import (
	"fmt"
	"time"
)

// Status is the derived liveness classification for a device at a point in time.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// French display labels used by the dashboards and heartbeat acks.
const (
	LabelOnline  = "En ligne"
	LabelOffline = "Hors ligne"
	LabelNever   = "Jamais"
)

// Classify maps a last-heartbeat timestamp to Online/Offline at the given instant.
// A device with no heartbeat on record is Offline. The boundary is strict: a device
// whose silence equals the timeout is already Offline.
func Classify(lastSeen *time.Time, now time.Time, timeout time.Duration) Status {
	if lastSeen == nil || lastSeen.IsZero() {
		return StatusOffline
	}
	if now.Sub(*lastSeen) < timeout {
		return StatusOnline
	}
	return StatusOffline
}

// Label returns the French display text for a status.
func (s Status) Label() string {
	if s == StatusOnline {
		return LabelOnline
	}
	return LabelOffline
}

// Online reports whether the status is online.
func (s Status) Online() bool {
	return s == StatusOnline
}

// ElapsedLabel renders the time since the last heartbeat as the dashboard string:
// "Jamais", "< 1 minute", "X minute(s)", "X heure(s)" or "X jour(s)".
func ElapsedLabel(lastSeen *time.Time, now time.Time) string {
	if lastSeen == nil || lastSeen.IsZero() {
		return LabelNever
	}
	elapsed := now.Sub(*lastSeen)
	switch {
	case elapsed < time.Minute:
		return "< 1 minute"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d minute(s)", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d heure(s)", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%d jour(s)", int(elapsed.Hours()/24))
	}
}
