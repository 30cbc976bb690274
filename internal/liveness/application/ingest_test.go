package application

import (
	"testing"
	"time"

	liveness "dvrwatch/internal/liveness/domain"
	registry "dvrwatch/internal/registry/domain"
)

func TestHeartbeatInputValidate(t *testing.T) {
	latency := 12.5
	negative := -1.0

	cases := []struct {
		name    string
		input   HeartbeatInput
		wantErr bool
	}{
		{name: "by id", input: HeartbeatInput{DeviceID: "dev-1"}},
		{name: "by address", input: HeartbeatInput{Address: "192.168.1.50"}},
		{name: "with latency", input: HeartbeatInput{DeviceID: "dev-1", LatencyMs: &latency}},
		{name: "explicit outcome", input: HeartbeatInput{DeviceID: "dev-1", Outcome: "timeout"}},
		{name: "no identity", input: HeartbeatInput{}, wantErr: true},
		{name: "bad outcome", input: HeartbeatInput{DeviceID: "dev-1", Outcome: "flaky"}, wantErr: true},
		{name: "negative latency", input: HeartbeatInput{DeviceID: "dev-1", LatencyMs: &negative}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHeartbeatInputDefaultsOutcome(t *testing.T) {
	input := HeartbeatInput{DeviceID: "dev-1"}
	if err := input.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if input.Outcome != "success" {
		t.Fatalf("expected success default, got %q", input.Outcome)
	}
}

func TestBuildDeviceStatus(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	timeout := 2 * time.Minute

	recent := now.Add(-30 * time.Second)
	online := buildDeviceStatus(registry.Device{ID: "dev-1", LastSeen: &recent}, now, timeout)
	if online.Status != liveness.StatusOnline {
		t.Fatalf("expected online, got %s", online.Status)
	}
	if online.Elapsed != "< 1 minute" {
		t.Fatalf("unexpected elapsed %q", online.Elapsed)
	}
	if online.LastSeen != recent.Format(time.RFC3339) {
		t.Fatalf("unexpected last seen %q", online.LastSeen)
	}

	never := buildDeviceStatus(registry.Device{ID: "dev-2"}, now, timeout)
	if never.Status != liveness.StatusOffline {
		t.Fatalf("expected offline, got %s", never.Status)
	}
	if never.Elapsed != "Jamais" {
		t.Fatalf("unexpected elapsed %q", never.Elapsed)
	}
	if never.LastSeen != "" {
		t.Fatalf("expected empty last seen, got %q", never.LastSeen)
	}

	stale := now.Add(-2 * time.Minute)
	boundary := buildDeviceStatus(registry.Device{ID: "dev-3", LastSeen: &stale}, now, timeout)
	if boundary.Status != liveness.StatusOffline {
		t.Fatalf("expected offline at exact timeout, got %s", boundary.Status)
	}
}
