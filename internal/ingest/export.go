package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/reconcile"
)

const (
	stagingSheet = "staging"
	summarySheet = "summary"
)

var stagingHeader = []string{
	"ID", "Client", "Issue date", "Due date", "Face value", "Balance", "Status",
	"Document", "Category", "Payment method", "Staging", "Changed fields", "Locked",
}

// ReceivableStagingXLSX renders a receivables staging list for review. The
// first columns keep the import layout so the sheet can be edited and
// re-imported.
func ReceivableStagingXLSX(items []reconcile.ReceivableItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stagingSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(stagingSheet, "A1", &stagingHeader); err != nil {
		return nil, err
	}
	for i, item := range items {
		t := item.Data
		if t == nil {
			continue
		}
		row := []any{
			t.ID,
			t.Client,
			models.FormatDate(t.IssueDate),
			models.FormatDate(t.DueDate),
			t.FaceValue.StringFixed(2),
			t.Balance.StringFixed(2),
			string(t.Status),
			t.DocumentNumber,
			t.Category,
			t.PaymentMethod,
			string(item.Status),
			strings.Join(item.ChangedFields, ", "),
			item.Locked,
		}
		if err := f.SetSheetRow(stagingSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	summary := models.Summarize(items)
	_ = f.SetCellValue(summarySheet, "A1", "New")
	_ = f.SetCellValue(summarySheet, "B1", summary.New)
	_ = f.SetCellValue(summarySheet, "A2", "Changed")
	_ = f.SetCellValue(summarySheet, "B2", summary.Changed)
	_ = f.SetCellValue(summarySheet, "A3", "Unchanged")
	_ = f.SetCellValue(summarySheet, "B3", summary.Unchanged)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
