package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"carbon-market/mrv-backend/internal/verification"
)

var queueColumns = []string{
	"Report ID", "Project", "Organization", "Methodology",
	"Status", "Priority", "Net Credits", "Confidence %",
	"Submitted", "Days Waiting",
}

// WriteQueueXLSX exports the review queue as a spreadsheet, preserving the
// queue's priority ordering.
func WriteQueueXLSX(w io.Writer, entries []verification.QueueEntry) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Review Queue"
	file.SetSheetName("Sheet1", sheet)

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range queueColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		file.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.ReportID.String(),
			entry.ProjectName,
			entry.OrganizationName,
			entry.MethodologyCode,
			string(entry.Status),
			string(entry.Priority),
			entry.NetCredits,
			entry.ConfidencePercent,
			entry.SubmittedAt.Format("2006-01-02"),
			entry.DaysWaiting,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row+1, err)
			}
		}
	}

	if err := file.AutoFilter(sheet, "A1:J1", nil); err != nil {
		return fmt.Errorf("failed to set auto filter: %w", err)
	}

	return file.Write(w)
}
