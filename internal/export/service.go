package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/utils"
)

const (
	reportsSheet    = "Reports"
	parametersSheet = "Parameters"
)

// ReportLister is the read side of the report store.
type ReportLister interface {
	List(ctx context.Context, petID string) ([]entity.HealthReport, error)
}

// Service produces XLSX workbooks of a pet's reports.
type Service struct {
	reports ReportLister
	logger  *slog.Logger
}

func NewService(reports ReportLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reports: reports, logger: logger}
}

// ExportReportsXLSX returns a workbook with one row per report on the Reports
// sheet and one row per lab value on the Parameters sheet.
func (s *Service) ExportReportsXLSX(ctx context.Context, petID string) ([]byte, error) {
	start := time.Now()

	reps, err := s.reports.List(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// Rename the default sheet so the workbook opens on Reports.
	if err := f.SetSheetName(f.GetSheetName(0), reportsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(parametersSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	writeRow(f, reportsSheet, 1, []any{"Report Date", "Report Type", "Title", "Veterinarian", "Status", "AI Analysis"})
	writeRow(f, parametersSheet, 1, []any{"Report Date", "Report", "Parameter", "Value", "Unit", "Reference Range", "Status"})

	row, prow := 2, 2
	for _, r := range reps {
		writeRow(f, reportsSheet, row, []any{
			r.ReportDate,
			r.ReportType,
			r.Title,
			utils.StrOrEmpty(r.Veterinarian),
			string(r.Status),
			truncate(utils.StrOrEmpty(r.AIAnalysis), 2000),
		})
		row++

		for _, p := range r.Parameters {
			writeRow(f, parametersSheet, prow, []any{
				r.ReportDate,
				r.Title,
				p.Name,
				p.Value,
				utils.StrOrEmpty(p.Unit),
				utils.StrOrEmpty(p.ReferenceRange),
				string(p.Status),
			})
			prow++
		}
	}

	_ = f.SetColWidth(reportsSheet, "A", "B", 14)
	_ = f.SetColWidth(reportsSheet, "C", "D", 28)
	_ = f.SetColWidth(reportsSheet, "E", "E", 12)
	_ = f.SetColWidth(reportsSheet, "F", "F", 80)
	_ = f.SetColWidth(parametersSheet, "A", "A", 14)
	_ = f.SetColWidth(parametersSheet, "B", "C", 28)
	_ = f.SetColWidth(parametersSheet, "D", "G", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"pet_id", petID,
		"reports", len(reps),
		"parameters", prow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
