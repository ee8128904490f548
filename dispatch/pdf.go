package dispatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"github.com/warp/leave-engine/leave"
)

// Renderer writes approval documents as PDFs into a directory. The file
// name is the document id, so regenerating an event overwrites the same
// artifact rather than duplicating it.
type Renderer struct {
	dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// ApprovalDocument renders the PDF for a finalized request and returns
// the path it was written to.
func (r *Renderer) ApprovalDocument(e leave.RequestApproved) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, e.DocumentID+".pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Approval")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Document: %s", e.DocumentID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Request: %s", e.RequestID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", e.EmployeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Leave type: %s", e.LeaveTypeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", e.StartDate, e.EndDate))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Working days charged: %s", e.DayCount.String()))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Approvals")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	for i, d := range e.ApproverChain {
		stage := "Department Head"
		if i > 0 {
			stage = "Human Resources"
		}
		pdf.Cell(0, 8, fmt.Sprintf("%s: %s on %s", stage, d.ActorID,
			d.DecidedAt.Format("2006-01-02 15:04 MST")))
		pdf.Ln(7)
		if d.Comment != "" {
			pdf.Cell(0, 8, fmt.Sprintf("  Comment: %s", d.Comment))
			pdf.Ln(7)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", err
	}
	return path, nil
}
