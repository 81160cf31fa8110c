package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildDeviceReportPDF renders a minimal PDF for a device report.
func BuildDeviceReportPDF(report DeviceReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if report.From != nil {
		pdf.Cell(0, 6, fmt.Sprintf("From: %s", report.From.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	if report.To != nil {
		pdf.Cell(0, 6, fmt.Sprintf("To: %s", report.To.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d", report.SampleCount))
	pdf.Ln(5)
	if !report.FirstRecordedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("First reading: %s", report.FirstRecordedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	if !report.LastRecordedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Last reading: %s", report.LastRecordedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Samples", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range metricRows(report) {
		pdf.CellFormat(45, 6, row.name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", row.summary.Min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", row.summary.Avg), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", row.summary.Max), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", row.summary.Samples), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDeviceReportXLSX renders a minimal XLSX for a device report.
func BuildDeviceReportXLSX(report DeviceReport) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "report"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Device Report")
	_ = f.SetCellValue(sheet, "A3", "Generated")
	_ = f.SetCellValue(sheet, "B3", report.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(sheet, "A4", "Samples")
	_ = f.SetCellValue(sheet, "B4", report.SampleCount)
	if !report.FirstRecordedAt.IsZero() {
		_ = f.SetCellValue(sheet, "A5", "First reading")
		_ = f.SetCellValue(sheet, "B5", report.FirstRecordedAt.Format(time.RFC3339))
	}
	if !report.LastRecordedAt.IsZero() {
		_ = f.SetCellValue(sheet, "A6", "Last reading")
		_ = f.SetCellValue(sheet, "B6", report.LastRecordedAt.Format(time.RFC3339))
	}

	_ = f.SetCellValue(sheet, "A8", "Metric")
	_ = f.SetCellValue(sheet, "B8", "Min")
	_ = f.SetCellValue(sheet, "C8", "Avg")
	_ = f.SetCellValue(sheet, "D8", "Max")
	_ = f.SetCellValue(sheet, "E8", "Samples")
	for i, row := range metricRows(report) {
		line := i + 9
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), row.name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.summary.Min)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", line), row.summary.Avg)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", line), row.summary.Max)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", line), row.summary.Samples)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type metricRow struct {
	name    string
	summary MetricSummary
}

func metricRows(report DeviceReport) []metricRow {
	var rows []metricRow
	add := func(name string, summary *MetricSummary) {
		if summary != nil {
			rows = append(rows, metricRow{name: name, summary: *summary})
		}
	}
	add("Temperature (C)", report.Temperature)
	add("Humidity (%)", report.Humidity)
	add("Dust density (ug/m3)", report.DustDensity)
	add("Light (%)", report.LightPct)
	add("Power (W)", report.Power)
	return rows
}
