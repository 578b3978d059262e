package ingest

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/reconcile"
)

var today = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

func workbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName failed: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

var header = []any{"ID", "Cliente", "Emissao", "Vencimento", "Valor", "Saldo", "Situacao", "Documento", "Categoria", "Forma"}

func TestReadReceivablesXLSX(t *testing.T) {
	r := workbook(t, [][]any{
		header,
		{"r1", "  João da Silva ", "2023-11-01", "01/12/2023", "1.234,56", "1.234,56", "", "NF-1", "servicos", "boleto"},
		{"r2", "ACME", "2023-11-01", "2024-02-01", 500, 0, "PAID"},
		{" ", ""},
		{"r3", "ACME", "2023-11-01", "not a date", "10", "10"},
		{"r4", "ACME", "2023-11-01", "2024-02-01", "10", "20"},
		{"", "ACME", "2023-11-01", "2024-02-01", "10", "10"},
	})

	titles, rejected, err := ReadReceivablesXLSX(r, models.Normalizer{Today: today})
	if err != nil {
		t.Fatalf("ReadReceivablesXLSX failed: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}

	r1 := titles[0]
	if r1.ID != "r1" || r1.Client != "JOAO DA SILVA" {
		t.Errorf("unexpected r1 identity %q %q", r1.ID, r1.Client)
	}
	if !r1.FaceValue.Equal(decimal.RequireFromString("1234.56")) || !r1.Balance.Equal(r1.FaceValue) {
		t.Errorf("r1 amounts = %s/%s", r1.FaceValue, r1.Balance)
	}
	if models.FormatDate(r1.DueDate) != "2023-12-01" || r1.Status != models.StatusOverdue {
		t.Errorf("r1 due/status = %s/%s", models.FormatDate(r1.DueDate), r1.Status)
	}
	if r1.Category != "SERVICOS" || r1.PaymentMethod != "BOLETO" || r1.DocumentNumber != "NF-1" {
		t.Errorf("r1 descriptive fields = %q %q %q", r1.Category, r1.PaymentMethod, r1.DocumentNumber)
	}
	if r1.Origin != models.OriginExternalImport || r1.CollectionState != models.CollectionUnset {
		t.Errorf("r1 origin/state = %s/%q", r1.Origin, r1.CollectionState)
	}

	r2 := titles[1]
	if r2.Status != models.StatusPaid || !r2.Balance.IsZero() || !r2.FaceValue.Equal(decimal.NewFromInt(500)) {
		t.Errorf("r2 = %s %s/%s", r2.Status, r2.FaceValue, r2.Balance)
	}

	wantRows := []int{5, 6, 7}
	if len(rejected) != len(wantRows) {
		t.Fatalf("expected %d rejected rows, got %v", len(wantRows), rejected)
	}
	for i, row := range wantRows {
		if rejected[i].Row != row {
			t.Errorf("rejected[%d].Row = %d, want %d", i, rejected[i].Row, row)
		}
	}
	if !errors.Is(rejected[0], models.ErrInvalidDate) {
		t.Errorf("row 5 error = %v, want invalid date", rejected[0].Err)
	}
	if !errors.Is(rejected[1], models.ErrBalanceExceedsFace) {
		t.Errorf("row 6 error = %v, want balance above face", rejected[1].Err)
	}
	if !errors.Is(rejected[2], models.ErrMissingID) {
		t.Errorf("row 7 error = %v, want missing id", rejected[2].Err)
	}
}

func TestReadReceivablesXLSXSerialDates(t *testing.T) {
	// 45322 is 2024-01-31 in the 1900 date system.
	r := workbook(t, [][]any{
		header,
		{"s1", "ACME", "", 45322, "10", "10"},
	})

	titles, rejected, err := ReadReceivablesXLSX(r, models.Normalizer{Today: today})
	if err != nil || len(rejected) != 0 {
		t.Fatalf("unexpected failure: %v %v", err, rejected)
	}
	if got := models.FormatDate(titles[0].DueDate); got != "2024-01-31" {
		t.Errorf("due date = %s, want 2024-01-31", got)
	}
	if titles[0].Status != models.StatusOpen {
		t.Errorf("status = %s, want OPEN", titles[0].Status)
	}
}

func TestReadPayablesXLSX(t *testing.T) {
	r := workbook(t, [][]any{
		header,
		{"p1", "Fornecedor Ação", "2023-12-01", "2024-01-10", "900", "900"},
		{"p2", "", "2023-12-01", "2024-01-10", "900", "900"},
	})

	payables, rejected, err := ReadPayablesXLSX(r, models.Normalizer{Today: today})
	if err != nil {
		t.Fatalf("ReadPayablesXLSX failed: %v", err)
	}
	if len(payables) != 1 || payables[0].Supplier != "FORNECEDOR ACAO" || payables[0].Status != models.StatusOpen {
		t.Errorf("unexpected payables %+v", payables)
	}
	if len(rejected) != 1 || rejected[0].Row != 3 || !errors.Is(rejected[0], models.ErrMissingCounterparty) {
		t.Errorf("unexpected rejections %v", rejected)
	}
}

func TestReadRejectsNonWorkbook(t *testing.T) {
	if _, _, err := ReadReceivablesXLSX(bytes.NewReader([]byte("id;client\n")), models.Normalizer{Today: today}); err == nil {
		t.Error("expected error for a non-xlsx input")
	}
}

func TestStagingExportRoundTrip(t *testing.T) {
	items := []reconcile.ReceivableItem{
		{
			Data: &models.ReceivableTitle{
				ID:        "r1",
				Client:    "ACME",
				IssueDate: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
				DueDate:   time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
				FaceValue: decimal.RequireFromString("100"),
				Balance:   decimal.RequireFromString("60"),
				Status:    models.StatusOverdue,
			},
			Status:        models.StagingChanged,
			ChangedFields: []string{reconcile.FieldBalance},
		},
		{
			Data: &models.ReceivableTitle{
				ID:        "r2",
				Client:    "BETA",
				DueDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				FaceValue: decimal.RequireFromString("75"),
				Balance:   decimal.RequireFromString("75"),
				Status:    models.StatusOpen,
			},
			Status: models.StagingNew,
		},
	}

	data, err := ReceivableStagingXLSX(items)
	if err != nil {
		t.Fatalf("ReceivableStagingXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue(stagingSheet, "L2"); got != reconcile.FieldBalance {
		t.Errorf("changed fields cell = %q", got)
	}
	if got, _ := f.GetCellValue(summarySheet, "B1"); got != "1" {
		t.Errorf("new count = %q, want 1", got)
	}

	titles, rejected, err := ReadReceivablesXLSX(bytes.NewReader(data), models.Normalizer{Today: today})
	if err != nil || len(rejected) != 0 {
		t.Fatalf("re-import failed: %v %v", err, rejected)
	}
	if len(titles) != 2 || !titles[0].Balance.Equal(decimal.RequireFromString("60")) || titles[1].Client != "BETA" {
		t.Errorf("unexpected re-imported titles %+v", titles)
	}
}
