package http

import (
	"context"
	"errors"
	"net/http"

	liveapp "dvrwatch/internal/liveness/application"
)

// StatusProvider supplies the current fleet classification.
type StatusProvider interface {
	Snapshot(ctx context.Context) ([]liveapp.DeviceStatus, error)
}

// AlertCounter counts open alerts for the dashboard summary.
type AlertCounter interface {
	CountUnacknowledged(ctx context.Context) (int64, error)
}

// StatusHandler serves the dashboard status endpoints.
type StatusHandler struct {
	provider StatusProvider
	alerts   AlertCounter
}

// NewStatusHandler constructs a handler.
func NewStatusHandler(provider StatusProvider, alerts AlertCounter) (*StatusHandler, error) {
	if provider == nil {
		return nil, errors.New("status handler: nil provider")
	}
	if alerts == nil {
		return nil, errors.New("status handler: nil alert counter")
	}
	return &StatusHandler{provider: provider, alerts: alerts}, nil
}

type deviceStatusView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	Address       string  `json:"address"`
	Online        bool    `json:"online"`
	Status        string  `json:"status"`
	LastHeartbeat *string `json:"last_heartbeat"`
	Elapsed       string  `json:"elapsed"`
}

type fleetStats struct {
	Total                int   `json:"total"`
	Online               int   `json:"online"`
	Offline              int   `json:"offline"`
	UnacknowledgedAlerts int64 `json:"unacknowledged_alerts"`
}

// HandleStatus serves GET /api/v1/devices/status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	statuses, err := h.provider.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "could not read device status")
		return
	}
	views := make([]deviceStatusView, 0, len(statuses))
	for _, status := range statuses {
		view := deviceStatusView{
			ID:      status.Device.ID,
			Name:    status.Device.Name,
			Kind:    status.Device.Kind,
			Address: status.Device.Address,
			Online:  status.Status.Online(),
			Status:  status.Status.Label(),
			Elapsed: status.Elapsed,
		}
		if status.LastSeen != "" {
			lastSeen := status.LastSeen
			view.LastHeartbeat = &lastSeen
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleStats serves GET /api/v1/stats.
func (h *StatusHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	statuses, err := h.provider.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "could not read device status")
		return
	}
	unacked, err := h.alerts.CountUnacknowledged(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "could not count alerts")
		return
	}

	stats := fleetStats{Total: len(statuses), UnacknowledgedAlerts: unacked}
	for _, status := range statuses {
		if status.Status.Online() {
			stats.Online++
		} else {
			stats.Offline++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}
