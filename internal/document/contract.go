// Package document renders settlement paperwork.
package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

// ErrNoSettlement is returned for a schedule without a settlement.
var ErrNoSettlement = errors.New("document: schedule has no settlement")

// ContractPDF renders the settlement contract: parties and amounts, the
// renegotiated titles and the installment schedule.
func ContractPDF(schedule *models.SettlementSchedule) ([]byte, error) {
	if schedule == nil || schedule.Settlement == nil {
		return nil, ErrNoSettlement
	}
	s := schedule.Settlement

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Settlement "+s.ID, true)
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Settlement Agreement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Agreement: %s", s.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Client: %s", s.Client)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", models.FormatDate(s.CreatedAt)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", s.Status))
	pdf.Ln(8)
	pdf.Cell(0, 6, fmt.Sprintf("Original debt: %s", s.OriginalAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Agreed amount: %s in %d %s installments",
		s.AgreedAmount.StringFixed(2), s.InstallmentCount, s.Frequency))
	pdf.Ln(10)

	if len(schedule.Originals) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Renegotiated titles")
		pdf.Ln(7)
		pdf.CellFormat(50, 6, "Title", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Document", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Due date", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Face value", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, t := range schedule.Originals {
			pdf.CellFormat(50, 6, tr(t.ID), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, tr(t.DocumentNumber), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, models.FormatDate(t.DueDate), "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, t.FaceValue.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Installments")
	pdf.Ln(7)
	pdf.CellFormat(15, 6, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Installment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Due date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range schedule.Lines {
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", line.Number), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, line.ID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, models.FormatDate(line.DueDate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, line.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(line.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
