package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"dvrwatch/internal/audit"
	registry "dvrwatch/internal/registry/domain"
)

type fakeDeviceRepo struct {
	devices map[string]*registry.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[string]*registry.Device)}
}

func (f *fakeDeviceRepo) Create(_ context.Context, device *registry.Device) error {
	copied := *device
	f.devices[device.ID] = &copied
	return nil
}

func (f *fakeDeviceRepo) Update(_ context.Context, device *registry.Device) error {
	if _, ok := f.devices[device.ID]; !ok {
		return registry.ErrNotFound
	}
	copied := *device
	f.devices[device.ID] = &copied
	return nil
}

func (f *fakeDeviceRepo) Deactivate(_ context.Context, id string) error {
	device, ok := f.devices[id]
	if !ok {
		return registry.ErrNotFound
	}
	device.Active = false
	return nil
}

func (f *fakeDeviceRepo) GetByID(_ context.Context, id string) (*registry.Device, error) {
	device, ok := f.devices[id]
	if !ok {
		return nil, nil
	}
	copied := *device
	return &copied, nil
}

func (f *fakeDeviceRepo) FindByAddress(_ context.Context, address string) (*registry.Device, error) {
	for _, device := range f.devices {
		if device.Active && device.Address == address {
			copied := *device
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeDeviceRepo) ListActive(_ context.Context) ([]registry.Device, error) {
	var out []registry.Device
	for _, device := range f.devices {
		if device.Active {
			out = append(out, *device)
		}
	}
	return out, nil
}

type fakeAudit struct {
	entries []audit.Entry
}

func (f *fakeAudit) Log(_ context.Context, entry audit.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time { return f.now }

func validInput() DeviceInput {
	return DeviceInput{
		Name:         "DVR Entrepôt",
		Kind:         registry.KindDVR,
		Address:      "192.168.1.50",
		Port:         8000,
		ContactEmail: "ops@example.fr",
	}
}

func TestCreateDevice(t *testing.T) {
	repo := newFakeDeviceRepo()
	auditLog := &fakeAudit{}
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	service, err := NewService(repo, WithAudit(auditLog), WithClock(fakeClock{now: now}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	device, err := service.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if device.ID == "" || !device.Active {
		t.Fatalf("unexpected device %+v", device)
	}
	if !device.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created at %v", device.CreatedAt)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "device.create" {
		t.Fatalf("unexpected audit entries %+v", auditLog.entries)
	}
}

func TestCreateDeviceAddressTaken(t *testing.T) {
	repo := newFakeDeviceRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err = service.Create(context.Background(), validInput())
	if !errors.Is(err, registry.ErrAddressTaken) {
		t.Fatalf("expected ErrAddressTaken, got %v", err)
	}
}

func TestCreateDeviceValidation(t *testing.T) {
	service, err := NewService(newFakeDeviceRepo())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	input := validInput()
	input.Address = "not-an-ip"
	if _, err := service.Create(context.Background(), input); err == nil {
		t.Fatal("expected error for invalid address")
	}

	input = validInput()
	input.Kind = "nvr"
	if _, err := service.Create(context.Background(), input); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestUpdateDevice(t *testing.T) {
	repo := newFakeDeviceRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	created, err := service.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	input := validInput()
	input.Name = "DVR Entrepôt Nord"
	input.Address = "192.168.1.51"
	updated, err := service.Update(context.Background(), created.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "DVR Entrepôt Nord" || updated.Address != "192.168.1.51" {
		t.Fatalf("unexpected device %+v", updated)
	}

	if _, err := service.Update(context.Background(), "missing", validInput()); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDeviceAddressConflict(t *testing.T) {
	repo := newFakeDeviceRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	first, err := service.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second := validInput()
	second.Address = "192.168.1.51"
	other, err := service.Create(context.Background(), second)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	input := validInput()
	input.Address = first.Address
	if _, err := service.Update(context.Background(), other.ID, input); !errors.Is(err, registry.ErrAddressTaken) {
		t.Fatalf("expected ErrAddressTaken, got %v", err)
	}
}

func TestDeactivateDevice(t *testing.T) {
	repo := newFakeDeviceRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	created, err := service.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.Deactivate(context.Background(), created.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	list, err := service.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no active devices, got %d", len(list))
	}

	// Address becomes reusable after deactivation.
	if _, err := service.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("recreate: %v", err)
	}
}
