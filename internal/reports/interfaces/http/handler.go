package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	reportapp "dvrwatch/internal/reports/application"
	reports "dvrwatch/internal/reports/domain"
)

// Handler provides availability report HTTP endpoints.
type Handler struct {
	runner *reportapp.Runner
	store  reportapp.ReportStore
}

// NewHandler constructs a handler.
func NewHandler(runner *reportapp.Runner, store reportapp.ReportStore) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("reports handler: nil runner")
	}
	if store == nil {
		return nil, errors.New("reports handler: nil store")
	}
	return &Handler{runner: runner, store: store}, nil
}

// ServeHTTP handles /api/v1/reports and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reports":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/reports/run":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRun(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/reports/"):
		h.handleDownload(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type runRequest struct {
	Date string `json:"date"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed JSON body")
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
		return
	}

	report, err := h.runner.Run(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "report generation failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(report)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	list, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "could not list reports")
		return
	}
	if list == nil {
		list = []reports.Report{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "download" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	report, err := h.store.GetByID(r.Context(), parts[0])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", "could not load report")
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "report_not_found", "unknown report id")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	var filePath, contentType string
	switch format {
	case "xlsx":
		filePath = report.XLSXPath
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		filePath = report.PDFPath
		contentType = "application/pdf"
	default:
		writeError(w, http.StatusBadRequest, "validation_error", "format must be xlsx or pdf")
		return
	}
	if filePath == "" {
		writeError(w, http.StatusNotFound, "report_not_found", "report file not available")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"disponibilite-"+report.ReportDate.Format("2006-01-02")+"."+format+"\"")
	http.ServeFile(w, r, filePath)
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
