package report

import (
	"fmt"
	"io"
	"time"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	SummarySheet = "Budget Summary"
	AlertsSheet  = "Alerts"
)

var alertHeader = []interface{}{"Severity", "Category", "Title", "Description", "Timestamp", "User", "Project"}

// XLSXWriter renders the auditor report as an Excel workbook
type XLSXWriter struct {
	logger *zap.Logger
}

var _ port.ReportWriter = (*XLSXWriter)(nil)

// NewXLSXWriter creates a new workbook writer
func NewXLSXWriter(logger *zap.Logger) *XLSXWriter {
	return &XLSXWriter{logger: logger}
}

// WriteAuditReport writes a two-sheet workbook: the budget summary and the alert list
func (x *XLSXWriter) WriteAuditReport(w io.Writer, asOf time.Time, summary *entity.BudgetSummary, alerts []entity.Alert) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(AlertsSheet); err != nil {
		return fmt.Errorf("failed to create alerts sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	rows := [][]interface{}{
		{"As of", asOf.UTC().Format(time.RFC3339)},
	}
	if summary != nil {
		rows = append(rows,
			[]interface{}{"Total budget", summary.TotalBudget.StringFixed(2)},
			[]interface{}{"Realized spend", summary.RealizedSpend.StringFixed(2)},
			[]interface{}{"Committed", summary.Committed.StringFixed(2)},
			[]interface{}{"Available", summary.Available.StringFixed(2)},
		)
	}
	rows = append(rows, []interface{}{"Alerts", len(alerts)})
	for i, row := range rows {
		if err := x.setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}

	if err := x.setRow(f, AlertsSheet, 1, alertHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(AlertsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	for i, a := range alerts {
		project := ""
		if a.ProjectID != nil {
			project = fmt.Sprintf("%d", *a.ProjectID)
		}
		row := []interface{}{
			string(a.Severity), string(a.Category), a.Title, a.Description,
			a.Timestamp.UTC().Format(time.RFC3339), a.UserID, project,
		}
		if err := x.setRow(f, AlertsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(AlertsSheet, "C", "D", 48); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("Audit report written", zap.Int("alerts", len(alerts)))
	return nil
}

func (x *XLSXWriter) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
