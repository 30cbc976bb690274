package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	heartbeats "dvrwatch/internal/heartbeats/domain"
)

// HistoryReader pages through a device's heartbeat history.
type HistoryReader interface {
	ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]heartbeats.Record, error)
}

// HistoryHandler serves heartbeat history for one device.
type HistoryHandler struct {
	store HistoryReader
}

// NewHistoryHandler constructs a handler.
func NewHistoryHandler(store HistoryReader) (*HistoryHandler, error) {
	if store == nil {
		return nil, errors.New("history handler: nil store")
	}
	return &HistoryHandler{store: store}, nil
}

// ServeHTTP handles GET /api/v1/heartbeats?device_id=...&limit=...&offset=...
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "device_id is required")
		return
	}
	limit, err := parseIntQuery(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	offset, err := parseIntQuery(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	records, err := h.store.ListByDevice(r.Context(), deviceID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "could not list heartbeats")
		return
	}
	if records == nil {
		records = []heartbeats.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func parseIntQuery(r *http.Request, key string) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return parsed, nil
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
