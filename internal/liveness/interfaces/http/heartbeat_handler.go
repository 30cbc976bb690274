package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	liveapp "dvrwatch/internal/liveness/application"
	"dvrwatch/internal/observability/metrics"
	registry "dvrwatch/internal/registry/domain"
)

// HeartbeatRecorder ingests heartbeats.
type HeartbeatRecorder interface {
	RecordHeartbeat(ctx context.Context, input liveapp.HeartbeatInput) (*liveapp.Ack, error)
}

// HeartbeatHandler ingests device heartbeats.
type HeartbeatHandler struct {
	monitor HeartbeatRecorder
}

// NewHeartbeatHandler constructs a handler.
func NewHeartbeatHandler(monitor HeartbeatRecorder) (*HeartbeatHandler, error) {
	if monitor == nil {
		return nil, errors.New("heartbeat handler: nil monitor")
	}
	return &HeartbeatHandler{monitor: monitor}, nil
}

type heartbeatRequest struct {
	DeviceID     string   `json:"device_id"`
	IP           string   `json:"ip"`
	Outcome      string   `json:"outcome"`
	ResponseTime *float64 `json:"response_time"`
	Message      string   `json:"message"`
}

// ServeHTTP handles POST /api/v1/heartbeat.
func (h *HeartbeatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveHeartbeat(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		metrics.IncHeartbeatError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result = metrics.ResultError
		metrics.IncHeartbeatError("invalid_json")
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
		return
	}

	ack, err := h.monitor.RecordHeartbeat(r.Context(), liveapp.HeartbeatInput{
		DeviceID:  req.DeviceID,
		Address:   req.IP,
		Outcome:   req.Outcome,
		LatencyMs: req.ResponseTime,
		Note:      req.Message,
	})
	if err != nil {
		result = metrics.ResultError
		switch {
		case errors.Is(err, registry.ErrNotFound):
			metrics.IncHeartbeatError("device_not_found")
			writeError(w, http.StatusNotFound, "device_not_found", "unknown or inactive device")
		case errors.Is(err, liveapp.ErrInvalidInput):
			metrics.IncHeartbeatError("invalid_payload")
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			metrics.IncHeartbeatError("store_error")
			writeError(w, http.StatusInternalServerError, "store_error", "could not record heartbeat")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ack)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: message})
}
