package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"carbon-market/mrv-backend/internal/verification"
)

// WriteStatementPDF renders the verification statement for a decided review:
// decision metadata, the calculation with its reasoning lines in their fixed
// audit order, and the frozen checklist snapshot.
func WriteStatementPDF(w io.Writer, review *verification.Review) error {
	if !review.Status.IsTerminal() {
		return fmt.Errorf("statement requires a decided review, status is %s", review.Status)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Verification Statement", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Verification Statement")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	writeField(pdf, "Report", review.ReportID.String())
	writeField(pdf, "Project", review.ProjectName)
	writeField(pdf, "Organization", review.OrganizationName)
	writeField(pdf, "Methodology", review.MethodologyCode)
	writeField(pdf, "Decision", string(review.Status))
	if review.VerifierID != nil {
		writeField(pdf, "Verifier", review.VerifierID.String())
	}
	if review.DecidedAt != nil {
		writeField(pdf, "Decided", review.DecidedAt.Format(time.RFC3339))
	}
	if review.DecisionNotes != "" {
		writeField(pdf, "Notes", review.DecisionNotes)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, "Credit Calculation")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 11)
	writeField(pdf, "Gross credits", fmt.Sprintf("%d tCO2e", review.Calculation.GrossCredits))
	writeField(pdf, "Risk adjustments", fmt.Sprintf("-%d tCO2e", review.Calculation.Adjustments))
	writeField(pdf, "Net credits", fmt.Sprintf("%d tCO2e", review.Calculation.NetCredits))
	writeField(pdf, "Confidence", fmt.Sprintf("%d%%", review.Calculation.ConfidencePercent))
	pdf.Ln(4)

	pdf.SetFont("Arial", "I", 10)
	for _, line := range review.Calculation.Reasoning {
		pdf.MultiCell(0, 6, "- "+line, "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, "Verification Checklist")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, item := range review.Checklist {
		marker := "optional"
		if item.Required {
			marker = "required"
		}
		pdf.MultiCell(0, 6,
			fmt.Sprintf("[%s] %s (%s) - %s", item.Status, item.Description, marker, item.Category),
			"", "L", false)
		if item.Notes != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.MultiCell(0, 5, "  "+item.Notes, "", "L", false)
			pdf.SetFont("Arial", "", 10)
		}
	}

	return pdf.Output(w)
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(40, 7, label)
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 7, value, "", "L", false)
}
