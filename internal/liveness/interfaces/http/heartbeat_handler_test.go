package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	liveapp "dvrwatch/internal/liveness/application"
	registry "dvrwatch/internal/registry/domain"
)

type fakeRecorder struct {
	lastInput liveapp.HeartbeatInput
	ack       *liveapp.Ack
	err       error
}

func (f *fakeRecorder) RecordHeartbeat(_ context.Context, input liveapp.HeartbeatInput) (*liveapp.Ack, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.ack, nil
}

func TestHeartbeatByAddress(t *testing.T) {
	received := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	recorder := &fakeRecorder{
		ack: &liveapp.Ack{DeviceID: "dev-1", Name: "DVR Entrepôt", Online: true, Status: "En ligne", ReceivedAt: received},
	}
	handler, err := NewHeartbeatHandler(recorder)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"ip":"192.168.1.50","response_time":12.5,"message":"ping ok"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/heartbeat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ack liveapp.Ack
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Status != "En ligne" || !ack.Online {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if recorder.lastInput.Address != "192.168.1.50" {
		t.Fatalf("unexpected input %+v", recorder.lastInput)
	}
	if recorder.lastInput.LatencyMs == nil || *recorder.lastInput.LatencyMs != 12.5 {
		t.Fatalf("latency not forwarded: %+v", recorder.lastInput)
	}
	if recorder.lastInput.Note != "ping ok" {
		t.Fatalf("note not forwarded: %+v", recorder.lastInput)
	}
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	handler, err := NewHeartbeatHandler(&fakeRecorder{err: registry.ErrNotFound})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/heartbeat", strings.NewReader(`{"ip":"10.0.0.9"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "device_not_found" {
		t.Fatalf("unexpected error code %q", body["error"])
	}
}

func TestHeartbeatValidation(t *testing.T) {
	handler, err := NewHeartbeatHandler(&fakeRecorder{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	cases := []struct {
		name string
		body string
	}{
		{name: "no identity", body: `{}`},
		{name: "bad outcome", body: `{"ip":"10.0.0.9","outcome":"flaky"}`},
		{name: "malformed json", body: `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/heartbeat", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != "validation_error" {
				t.Fatalf("unexpected error code %q", body["error"])
			}
		})
	}
}

func TestHeartbeatMethodNotAllowed(t *testing.T) {
	handler, err := NewHeartbeatHandler(&fakeRecorder{})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/heartbeat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
