package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	reports "dvrwatch/internal/reports/domain"
)

const defaultReportsTable = "availability_reports"

const reportColumns = `id, report_date, generated_at, device_count, offline_count, xlsx_path, pdf_path`

// ReportRepository is a Postgres implementation for report metadata.
type ReportRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReportRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReportRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB, opts ...RepositoryOption) *ReportRepository {
	repo := &ReportRepository{db: db, table: defaultReportsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Create upserts a report row. Regenerating a day's report replaces the
// previous row for the same id.
func (r *ReportRepository) Create(ctx context.Context, report *reports.Report) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if report == nil {
		return errors.New("report repo: nil report")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, report_date, generated_at, device_count, offline_count, xlsx_path, pdf_path)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	generated_at = EXCLUDED.generated_at,
	device_count = EXCLUDED.device_count,
	offline_count = EXCLUDED.offline_count,
	xlsx_path = EXCLUDED.xlsx_path,
	pdf_path = EXCLUDED.pdf_path`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		report.ID, report.ReportDate.UTC(), report.GeneratedAt.UTC(),
		report.DeviceCount, report.OfflineCount, report.XLSXPath, report.PDFPath)
	return err
}

// GetByID returns a report or (nil, nil) when absent.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, reportColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListRecent returns the newest reports first.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) ([]reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	if limit <= 0 {
		limit = 30
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY report_date DESC LIMIT $1`, reportColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reports.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*reports.Report, error) {
	var report reports.Report
	var xlsxPath sql.NullString
	var pdfPath sql.NullString
	if err := row.Scan(
		&report.ID, &report.ReportDate, &report.GeneratedAt,
		&report.DeviceCount, &report.OfflineCount, &xlsxPath, &pdfPath,
	); err != nil {
		return nil, err
	}
	report.ReportDate = report.ReportDate.UTC()
	report.GeneratedAt = report.GeneratedAt.UTC()
	if xlsxPath.Valid {
		report.XLSXPath = xlsxPath.String
	}
	if pdfPath.Valid {
		report.PDFPath = pdfPath.String
	}
	return &report, nil
}
