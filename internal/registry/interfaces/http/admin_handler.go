package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	regapp "dvrwatch/internal/registry/application"
	registry "dvrwatch/internal/registry/domain"
)

// AdminHandler provides device CRUD endpoints.
type AdminHandler struct {
	service *regapp.Service
}

// NewAdminHandler constructs a handler.
func NewAdminHandler(service *regapp.Service) (*AdminHandler, error) {
	if service == nil {
		return nil, errors.New("registry handler: nil service")
	}
	return &AdminHandler{service: service}, nil
}

// ServeHTTP handles /api/v1/devices and subroutes.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/devices":
		h.handleCollection(w, r)
	case strings.HasPrefix(path, "/api/v1/devices/"):
		h.handleItem(w, r, strings.TrimPrefix(path, "/api/v1/devices/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AdminHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.service.ListActive(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_error", "could not list devices")
			return
		}
		if list == nil {
			list = []registry.Device{}
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var input regapp.DeviceInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
			return
		}
		device, err := h.service.Create(r.Context(), input)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, device)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) handleItem(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		device, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, device)
	case http.MethodPut:
		var input regapp.DeviceInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid json body")
			return
		}
		device, err := h.service.Update(r.Context(), id, input)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, device)
	case http.MethodDelete:
		if err := h.service.Deactivate(r.Context(), id); err != nil {
			h.respondServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "device_not_found", "unknown device id")
	case errors.Is(err, registry.ErrAddressTaken):
		writeError(w, http.StatusConflict, "address_taken", "address already registered")
	case errors.Is(err, registry.ErrInvalid):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "store_error", "device store failure")
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}
