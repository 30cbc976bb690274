package application

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"dvrwatch/internal/alerts/notify"
	registry "dvrwatch/internal/registry/domain"
	reports "dvrwatch/internal/reports/domain"
)

type fakeDeviceLister struct {
	devices []registry.Device
}

func (f *fakeDeviceLister) ListActive(context.Context) ([]registry.Device, error) {
	return f.devices, nil
}

type fakeHeartbeatCounter struct {
	counts map[string]int64
}

func (f *fakeHeartbeatCounter) CountSince(_ context.Context, deviceID string, _, _ time.Time) (int64, error) {
	return f.counts[deviceID], nil
}

type fakeAlertCounter struct {
	counts map[string]int64
}

func (f *fakeAlertCounter) CountOfflineSince(_ context.Context, deviceID string, _, _ time.Time) (int64, error) {
	return f.counts[deviceID], nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	created []*reports.Report
}

func (f *fakeReportStore) Create(_ context.Context, report *reports.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, report)
	return nil
}

func (f *fakeReportStore) GetByID(_ context.Context, id string) (*reports.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, report := range f.created {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) ListRecent(context.Context, int) ([]reports.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]reports.Report, 0, len(f.created))
	for _, report := range f.created {
		out = append(out, *report)
	}
	return out, nil
}

type captureChannel struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *captureChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureChannel) Name() string { return "capture" }

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		StorageRoot:           t.TempDir(),
		DailyAt:               "04:00",
		HeartbeatInterval:     time.Minute,
		AvailabilityThreshold: 95,
		StoreTimeout:          5 * time.Second,
	}
}

func TestRunGeneratesReportAndFiles(t *testing.T) {
	devices := &fakeDeviceLister{devices: []registry.Device{
		{ID: "dev-1", Name: "DVR entrepot", Kind: registry.KindDVR, Address: "10.0.0.10"},
		{ID: "dev-2", Name: "Camera quai", Kind: registry.KindCamera, Address: "10.0.0.11"},
	}}
	beats := &fakeHeartbeatCounter{counts: map[string]int64{"dev-1": 1440, "dev-2": 720}}
	alerts := &fakeAlertCounter{counts: map[string]int64{"dev-2": 3}}
	store := &fakeReportStore{}
	clock := &fakeClock{now: time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)}

	runner, err := NewRunner(devices, beats, alerts, store, testConfig(t), WithClock(clock))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	report, err := runner.Run(context.Background(), time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ID != "rpt-20260301" {
		t.Fatalf("report id = %q", report.ID)
	}
	if report.DeviceCount != 2 {
		t.Fatalf("device count = %d, want 2", report.DeviceCount)
	}
	if report.OfflineCount != 3 {
		t.Fatalf("offline count = %d, want 3", report.OfflineCount)
	}
	if len(store.created) != 1 {
		t.Fatalf("store received %d reports, want 1", len(store.created))
	}
	for _, path := range []string{report.XLSXPath, report.PDFPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("export file missing: %v", err)
		}
		if info.Size() == 0 {
			t.Fatalf("export file %s is empty", path)
		}
	}
}

func TestRunNotifiesBelowThreshold(t *testing.T) {
	devices := &fakeDeviceLister{devices: []registry.Device{
		{ID: "dev-1", Name: "Camera parking", Kind: registry.KindCamera, Address: "10.0.0.20"},
	}}
	beats := &fakeHeartbeatCounter{counts: map[string]int64{"dev-1": 700}}
	alerts := &fakeAlertCounter{counts: map[string]int64{}}
	store := &fakeReportStore{}
	channel := &captureChannel{}

	runner, err := NewRunner(devices, beats, alerts, store, testConfig(t), WithChannel(channel))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := runner.Run(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("channel received %d messages, want 1", len(channel.sent))
	}
	msg := channel.sent[0]
	if !strings.Contains(msg.Subject, "2026-03-01") {
		t.Fatalf("subject = %q, want report date", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Camera parking") {
		t.Fatalf("body = %q, want degraded device name", msg.Body)
	}
}

func TestRunSkipsNotificationWhenHealthy(t *testing.T) {
	devices := &fakeDeviceLister{devices: []registry.Device{
		{ID: "dev-1", Name: "DVR hall", Kind: registry.KindDVR, Address: "10.0.0.30"},
	}}
	beats := &fakeHeartbeatCounter{counts: map[string]int64{"dev-1": 1440}}
	store := &fakeReportStore{}
	channel := &captureChannel{}

	runner, err := NewRunner(devices, beats, &fakeAlertCounter{}, store, testConfig(t), WithChannel(channel))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := runner.Run(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(channel.sent) != 0 {
		t.Fatalf("channel received %d messages, want 0", len(channel.sent))
	}
}

func TestAvailability(t *testing.T) {
	cases := []struct {
		name     string
		received int64
		expected int64
		want     float64
	}{
		{"full day", 1440, 1440, 100},
		{"half day", 720, 1440, 50},
		{"capped at hundred", 1500, 1440, 100},
		{"zero expected", 10, 0, 0},
		{"silent device", 0, 1440, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Availability(tc.received, tc.expected)
			if got != tc.want {
				t.Fatalf("Availability(%d, %d) = %v, want %v", tc.received, tc.expected, got, tc.want)
			}
		})
	}
}

func TestExpectedBeats(t *testing.T) {
	if got := ExpectedBeats(24*time.Hour, time.Minute); got != 1440 {
		t.Fatalf("ExpectedBeats = %d, want 1440", got)
	}
	if got := ExpectedBeats(24*time.Hour, 0); got != 0 {
		t.Fatalf("ExpectedBeats with zero interval = %d, want 0", got)
	}
}

func TestConfigValidate(t *testing.T) {
	base := testConfig(t)
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := base
	bad.DailyAt = "26:00"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for bad daily_at")
	}

	bad = base
	bad.AvailabilityThreshold = 120
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for threshold above 100")
	}

	bad = base
	bad.HeartbeatInterval = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
