package application

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	reports "dvrwatch/internal/reports/domain"
)

// BuildAvailabilityPDF renders a daily availability report as PDF.
func BuildAvailabilityPDF(report *reports.Report, rows []reports.Row) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Rapport de disponibilite")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", report.ReportDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Genere: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Equipements: %d", report.DeviceCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alertes hors ligne: %d", report.OfflineCount))
	pdf.Ln(8)

	// Availability table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Equipement", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Adresse", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Attendus", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Recus", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Dispo (%)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.CellFormat(45, 6, row.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, row.Kind, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, row.Address, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", row.Expected), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", row.Received), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.1f", row.UptimePct), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAvailabilityXLSX renders a daily availability report as XLSX.
func BuildAvailabilityXLSX(report *reports.Report, rows []reports.Row) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "resume"
	detailSheet := "disponibilite"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(detailSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Rapport de disponibilite")
	_ = f.SetCellValue(summarySheet, "A3", "Date")
	_ = f.SetCellValue(summarySheet, "B3", report.ReportDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A4", "Genere")
	_ = f.SetCellValue(summarySheet, "B4", report.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Equipements")
	_ = f.SetCellValue(summarySheet, "B5", report.DeviceCount)
	_ = f.SetCellValue(summarySheet, "A6", "Alertes hors ligne")
	_ = f.SetCellValue(summarySheet, "B6", report.OfflineCount)

	_ = f.SetCellValue(detailSheet, "A1", "Equipement")
	_ = f.SetCellValue(detailSheet, "B1", "Type")
	_ = f.SetCellValue(detailSheet, "C1", "Adresse")
	_ = f.SetCellValue(detailSheet, "D1", "Battements attendus")
	_ = f.SetCellValue(detailSheet, "E1", "Battements recus")
	_ = f.SetCellValue(detailSheet, "F1", "Disponibilite (%)")
	_ = f.SetCellValue(detailSheet, "G1", "Alertes hors ligne")
	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("A%d", line), row.Name)
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("B%d", line), row.Kind)
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("C%d", line), row.Address)
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("D%d", line), row.Expected)
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("E%d", line), row.Received)
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("F%d", line), row.UptimePct)
		_ = f.SetCellValue(detailSheet, fmt.Sprintf("G%d", line), row.OfflineAlerts)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
