package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	registry "dvrwatch/internal/registry/domain"
	reportapp "dvrwatch/internal/reports/application"
	reports "dvrwatch/internal/reports/domain"
)

type memoryReportStore struct {
	reports map[string]*reports.Report
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{reports: make(map[string]*reports.Report)}
}

func (m *memoryReportStore) Create(_ context.Context, report *reports.Report) error {
	m.reports[report.ID] = report
	return nil
}

func (m *memoryReportStore) GetByID(_ context.Context, id string) (*reports.Report, error) {
	return m.reports[id], nil
}

func (m *memoryReportStore) ListRecent(context.Context, int) ([]reports.Report, error) {
	out := make([]reports.Report, 0, len(m.reports))
	for _, report := range m.reports {
		out = append(out, *report)
	}
	return out, nil
}

type staticDevices struct{}

func (staticDevices) ListActive(context.Context) ([]registry.Device, error) {
	return []registry.Device{
		{ID: "dev-1", Name: "DVR accueil", Kind: registry.KindDVR, Address: "10.0.0.5"},
	}, nil
}

type staticBeats struct{}

func (staticBeats) CountSince(context.Context, string, time.Time, time.Time) (int64, error) {
	return 1440, nil
}

type staticAlerts struct{}

func (staticAlerts) CountOfflineSince(context.Context, string, time.Time, time.Time) (int64, error) {
	return 0, nil
}

func newTestHandler(t *testing.T) (*Handler, *memoryReportStore) {
	t.Helper()
	cfg := reportapp.Config{
		StorageRoot:           t.TempDir(),
		DailyAt:               "04:00",
		HeartbeatInterval:     time.Minute,
		AvailabilityThreshold: 95,
		StoreTimeout:          5 * time.Second,
	}
	store := newMemoryReportStore()
	runner, err := reportapp.NewRunner(staticDevices{}, staticBeats{}, staticAlerts{}, store, cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	handler, err := NewHandler(runner, store)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, store
}

func TestRunEndpointGeneratesReport(t *testing.T) {
	handler, store := newTestHandler(t)

	body := strings.NewReader(`{"date":"2026-03-01"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/run", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var report reports.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.ID != "rpt-20260301" {
		t.Fatalf("report id = %q", report.ID)
	}
	if _, ok := store.reports[report.ID]; !ok {
		t.Fatal("report not persisted")
	}
}

func TestRunEndpointRejectsBadDate(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/run", strings.NewReader(`{"date":"01/03/2026"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "validation_error" {
		t.Fatalf("error code = %q", resp.Error)
	}
}

func TestListReports(t *testing.T) {
	handler, store := newTestHandler(t)
	store.reports["rpt-20260301"] = &reports.Report{
		ID:         "rpt-20260301",
		ReportDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list []reports.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "rpt-20260301" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestDownloadUnknownReport(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/rpt-19990101/download?format=pdf", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadServesGeneratedFile(t *testing.T) {
	handler, _ := newTestHandler(t)

	run := httptest.NewRequest(http.MethodPost, "/api/v1/reports/run", strings.NewReader(`{"date":"2026-03-01"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, run)
	if rec.Code != http.StatusCreated {
		t.Fatalf("run status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/rpt-20260301/download?format=xlsx", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("content type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty download body")
	}
}
