package apihttp

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"receivables-cloud/internal/observability/metrics"
	reconcile "receivables-cloud/internal/reconcile/domain"
	reconcilepg "receivables-cloud/internal/reconcile/infrastructure/postgres"
)

// ReportExportHandler serves the latest reconciliation run report as JSON,
// CSV, PDF or XLSX.
type ReportExportHandler struct {
	runs RunReader
}

// NewReportExportHandler constructs a ReportExportHandler.
func NewReportExportHandler(runs RunReader) *ReportExportHandler {
	return &ReportExportHandler{runs: runs}
}

// ServeHTTP handles GET /api/v1/reconciliation/report.
func (h *ReportExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.runs == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	report, err := h.runs.LatestRun(r.Context())
	if errors.Is(err, reconcilepg.ErrRunNotFound) {
		http.Error(w, "no reconciliation run recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	switch format {
	case "json":
		writeJSON(w, http.StatusOK, report)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=reconciliation-report.csv")
		writeReportCSV(w, report)
	case "pdf":
		payload, err := BuildReportPDF(report)
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			http.Error(w, "render pdf error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=reconciliation-report.pdf")
		_, _ = w.Write(payload)
	case "xlsx":
		payload, err := BuildReportXLSX(report)
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			http.Error(w, "render xlsx error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=reconciliation-report.xlsx")
		_, _ = w.Write(payload)
	default:
		http.Error(w, "format must be json, csv, pdf or xlsx", http.StatusBadRequest)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
}

func writeReportCSV(w http.ResponseWriter, report reconcile.Report) {
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"run_id",
		"account_id",
		"previous",
		"computed",
		"delta",
		"status",
		"reason",
		"at",
	})
	for _, record := range report.Corrections {
		_ = writer.Write([]string{
			report.RunID,
			record.AccountID,
			record.Previous.String(),
			record.Computed.String(),
			record.Delta.String(),
			string(record.Status),
			record.Reason,
			record.At.Format(time.RFC3339),
		})
	}
	writer.Flush()
}

// BuildReportPDF renders a minimal PDF for a reconciliation run report.
func BuildReportPDF(report reconcile.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Reconciliation Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", report.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", report.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Finished: %s", report.FinishedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d  Succeeded: %d  Failed: %d", report.Total, report.Succeeded, report.Failed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Corrected: %d  Unchanged: %d", report.Corrected, report.Unchanged))
	pdf.Ln(5)
	if report.Canceled {
		pdf.Cell(0, 6, "Run was canceled before completion")
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Account", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Previous", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Computed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Delta", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range report.Corrections {
		pdf.CellFormat(45, 6, record.AccountID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, record.Previous.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, record.Computed.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, record.Delta.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, string(record.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a minimal XLSX for a reconciliation run report.
func BuildReportXLSX(report reconcile.Report) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	correctionsSheet := "corrections"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(correctionsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Reconciliation Report")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", report.RunID)
	_ = f.SetCellValue(summarySheet, "A4", "Started")
	_ = f.SetCellValue(summarySheet, "B4", report.StartedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Finished")
	_ = f.SetCellValue(summarySheet, "B5", report.FinishedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Total")
	_ = f.SetCellValue(summarySheet, "B6", report.Total)
	_ = f.SetCellValue(summarySheet, "A7", "Succeeded")
	_ = f.SetCellValue(summarySheet, "B7", report.Succeeded)
	_ = f.SetCellValue(summarySheet, "A8", "Failed")
	_ = f.SetCellValue(summarySheet, "B8", report.Failed)
	_ = f.SetCellValue(summarySheet, "A9", "Corrected")
	_ = f.SetCellValue(summarySheet, "B9", report.Corrected)
	_ = f.SetCellValue(summarySheet, "A10", "Unchanged")
	_ = f.SetCellValue(summarySheet, "B10", report.Unchanged)
	_ = f.SetCellValue(summarySheet, "A11", "Canceled")
	_ = f.SetCellValue(summarySheet, "B11", report.Canceled)

	_ = f.SetCellValue(correctionsSheet, "A1", "Account")
	_ = f.SetCellValue(correctionsSheet, "B1", "Previous")
	_ = f.SetCellValue(correctionsSheet, "C1", "Computed")
	_ = f.SetCellValue(correctionsSheet, "D1", "Delta")
	_ = f.SetCellValue(correctionsSheet, "E1", "Status")
	_ = f.SetCellValue(correctionsSheet, "F1", "Reason")
	for i, record := range report.Corrections {
		row := i + 2
		_ = f.SetCellValue(correctionsSheet, fmt.Sprintf("A%d", row), record.AccountID)
		_ = f.SetCellValue(correctionsSheet, fmt.Sprintf("B%d", row), record.Previous.String())
		_ = f.SetCellValue(correctionsSheet, fmt.Sprintf("C%d", row), record.Computed.String())
		_ = f.SetCellValue(correctionsSheet, fmt.Sprintf("D%d", row), record.Delta.String())
		_ = f.SetCellValue(correctionsSheet, fmt.Sprintf("E%d", row), string(record.Status))
		_ = f.SetCellValue(correctionsSheet, fmt.Sprintf("F%d", row), record.Reason)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
