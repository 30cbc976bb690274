package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dvrwatch/internal/alerts/notify"
	"dvrwatch/internal/observability/metrics"
	registry "dvrwatch/internal/registry/domain"
	reports "dvrwatch/internal/reports/domain"
)

// DeviceLister lists the active fleet.
type DeviceLister interface {
	ListActive(ctx context.Context) ([]registry.Device, error)
}

// HeartbeatCounter counts heartbeats per device over a window.
type HeartbeatCounter interface {
	CountSince(ctx context.Context, deviceID string, from, to time.Time) (int64, error)
}

// OfflineAlertCounter counts went-offline alerts per device over a window.
type OfflineAlertCounter interface {
	CountOfflineSince(ctx context.Context, deviceID string, from, to time.Time) (int64, error)
}

// ReportStore persists generated report metadata.
type ReportStore interface {
	Create(ctx context.Context, report *reports.Report) error
	GetByID(ctx context.Context, id string) (*reports.Report, error)
	ListRecent(ctx context.Context, limit int) ([]reports.Report, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Runner generates the daily availability report for the fleet.
type Runner struct {
	devices    DeviceLister
	heartbeats HeartbeatCounter
	alerts     OfflineAlertCounter
	store      ReportStore
	channel    notify.Channel
	cfg        Config
	logger     *log.Logger
	clock      Clock
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithChannel sets the notification channel for threshold breaches.
func WithChannel(channel notify.Channel) RunnerOption {
	return func(r *Runner) {
		r.channel = channel
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRunner constructs a report runner.
func NewRunner(devices DeviceLister, heartbeats HeartbeatCounter, alerts OfflineAlertCounter, store ReportStore, cfg Config, opts ...RunnerOption) (*Runner, error) {
	if devices == nil {
		return nil, errors.New("report runner: nil device lister")
	}
	if heartbeats == nil {
		return nil, errors.New("report runner: nil heartbeat counter")
	}
	if alerts == nil {
		return nil, errors.New("report runner: nil alert counter")
	}
	if store == nil {
		return nil, errors.New("report runner: nil report store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runner := &Runner{
		devices:    devices,
		heartbeats: heartbeats,
		alerts:     alerts,
		store:      store,
		cfg:        cfg,
		logger:     log.Default(),
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run generates the availability report for the given calendar day,
// writes the export files to disk and records the report row. Running
// twice for the same day overwrites the previous report.
func (r *Runner) Run(ctx context.Context, date time.Time) (*reports.Report, error) {
	started := r.clock.Now()
	report, err := r.run(ctx, date)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReportRun(result, r.clock.Now().Sub(started))
	return report, err
}

func (r *Runner) run(ctx context.Context, date time.Time) (*reports.Report, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	devices, err := r.devices.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("report run: list devices: %w", err)
	}

	expected := ExpectedBeats(24*time.Hour, r.cfg.HeartbeatInterval)
	rows := make([]reports.Row, 0, len(devices))
	var offlineTotal int64
	for _, device := range devices {
		storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
		received, err := r.heartbeats.CountSince(storeCtx, device.ID, dayStart, dayEnd)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("report run: count heartbeats for %s: %w", device.ID, err)
		}
		offline, err := r.alerts.CountOfflineSince(storeCtx, device.ID, dayStart, dayEnd)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("report run: count alerts for %s: %w", device.ID, err)
		}
		offlineTotal += offline
		rows = append(rows, reports.Row{
			DeviceID:      device.ID,
			Name:          device.Name,
			Kind:          device.Kind,
			Address:       device.Address,
			Expected:      expected,
			Received:      received,
			UptimePct:     Availability(received, expected),
			OfflineAlerts: offline,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	report := &reports.Report{
		ID:           reports.BuildID(dayStart),
		ReportDate:   dayStart,
		GeneratedAt:  r.clock.Now().UTC(),
		DeviceCount:  len(devices),
		OfflineCount: int(offlineTotal),
	}

	if err := r.writeExports(report, rows); err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	err = r.store.Create(storeCtx, report)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("report run: store report: %w", err)
	}

	r.notifyBelowThreshold(ctx, report, rows)
	r.logger.Printf("availability report generated id=%s devices=%d offline_alerts=%d", report.ID, report.DeviceCount, report.OfflineCount)
	return report, nil
}

func (r *Runner) writeExports(report *reports.Report, rows []reports.Row) error {
	dir := filepath.Join(r.cfg.StorageRoot, report.ReportDate.Format("20060102"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report run: create output dir: %w", err)
	}

	xlsxData, err := BuildAvailabilityXLSX(report, rows)
	if err != nil {
		return fmt.Errorf("report run: build xlsx: %w", err)
	}
	xlsxPath := filepath.Join(dir, "disponibilite.xlsx")
	if err := os.WriteFile(xlsxPath, xlsxData, 0o644); err != nil {
		return fmt.Errorf("report run: write xlsx: %w", err)
	}
	report.XLSXPath = xlsxPath

	pdfData, err := BuildAvailabilityPDF(report, rows)
	if err != nil {
		return fmt.Errorf("report run: build pdf: %w", err)
	}
	pdfPath := filepath.Join(dir, "disponibilite.pdf")
	if err := os.WriteFile(pdfPath, pdfData, 0o644); err != nil {
		return fmt.Errorf("report run: write pdf: %w", err)
	}
	report.PDFPath = pdfPath
	return nil
}

func (r *Runner) notifyBelowThreshold(ctx context.Context, report *reports.Report, rows []reports.Row) {
	if r.channel == nil {
		return
	}
	var degraded []string
	for _, row := range rows {
		if row.UptimePct < r.cfg.AvailabilityThreshold {
			degraded = append(degraded, fmt.Sprintf("%s (%s) : %.1f%%", row.Name, row.Address, row.UptimePct))
		}
	}
	if len(degraded) == 0 {
		return
	}
	msg := notify.Message{
		Subject: "Disponibilité dégradée : " + report.ReportDate.Format("2006-01-02"),
		Body: fmt.Sprintf("%d équipement(s) sous le seuil de %.1f%% :\n%s",
			len(degraded), r.cfg.AvailabilityThreshold, strings.Join(degraded, "\n")),
	}
	if err := r.channel.Send(ctx, msg); err != nil {
		r.logger.Printf("report threshold notification failed: %v", err)
		metrics.IncNotification(r.channel.Name(), metrics.ResultError)
		return
	}
	metrics.IncNotification(r.channel.Name(), metrics.ResultSuccess)
}

// ExpectedBeats returns how many heartbeats a device should emit over
// the window at the configured interval.
func ExpectedBeats(window, interval time.Duration) int64 {
	if interval <= 0 {
		return 0
	}
	return int64(window / interval)
}

// Availability is the received over expected ratio as a percentage,
// capped at 100. Extra beats from manual probes never push a device
// above full availability.
func Availability(received, expected int64) float64 {
	if expected <= 0 {
		return 0
	}
	pct := float64(received) / float64(expected) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
