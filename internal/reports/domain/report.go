package reports

import (
	"errors"
	"time"
)

// ErrNotFound indicates an unknown report id.
var ErrNotFound = errors.New("report not found")

// Report is one generated daily availability report.
type Report struct {
	ID           string    `json:"id"`
	ReportDate   time.Time `json:"report_date"`
	GeneratedAt  time.Time `json:"generated_at"`
	DeviceCount  int       `json:"device_count"`
	OfflineCount int       `json:"offline_count"`
	XLSXPath     string    `json:"xlsx_path,omitempty"`
	PDFPath      string    `json:"pdf_path,omitempty"`
}

// Row is one device's availability over the report day. Rows are
// rendered into the export files and not persisted individually.
type Row struct {
	DeviceID      string
	Name          string
	Kind          string
	Address       string
	Expected      int64
	Received      int64
	UptimePct     float64
	OfflineAlerts int64
}

// BuildID derives the report id for a date.
func BuildID(date time.Time) string {
	return "rpt-" + date.UTC().Format("20060102")
}
