// Package ingest reads title spreadsheets into normalized records and writes
// staging lists back out for review.
//
// Both readers expect the first sheet with one header row and this fixed
// column layout:
//
//	A id | B counterparty | C issue date | D due date | E face value |
//	F balance | G status | H document number | I category | J payment method
//
// Legacy .xls workbooks are read as well. Dates are YYYY-MM-DD, DD/MM/YYYY or
// Excel serial numbers. Amounts accept both 1234.56 and 1.234,56.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

const (
	colID = iota
	colCounterparty
	colIssueDate
	colDueDate
	colFaceValue
	colBalance
	colStatus
	colDocument
	colCategory
	colPaymentMethod
)

// ErrEmptyWorkbook is returned when the workbook has no sheet.
var ErrEmptyWorkbook = errors.New("ingest: workbook has no sheets")

// RowError is a spreadsheet row that could not be turned into a title.
type RowError struct {
	// Row is the 1-based spreadsheet row number.
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// fields is one parsed data row before it is shaped into a title.
type fields struct {
	id, counterparty           string
	issue, due                 time.Time
	face, balance              decimal.Decimal
	status                     models.TitleStatus
	document, category, method string
}

// ReadReceivablesXLSX parses a receivables workbook. Rows that fail parsing
// or normalization are returned as RowErrors; the rest are returned in sheet
// order.
func ReadReceivablesXLSX(r io.Reader, n models.Normalizer) ([]*models.ReceivableTitle, []RowError, error) {
	var titles []*models.ReceivableTitle
	rejected, err := readRows(r, func(f fields) error {
		t := &models.ReceivableTitle{
			ID:             f.id,
			Client:         f.counterparty,
			IssueDate:      f.issue,
			DueDate:        f.due,
			FaceValue:      f.face,
			Balance:        f.balance,
			Status:         f.status,
			DocumentNumber: f.document,
			Category:       f.category,
			PaymentMethod:  f.method,
			Origin:         models.OriginExternalImport,
		}
		if err := n.Receivable(t); err != nil {
			return err
		}
		titles = append(titles, t)
		return nil
	})
	return titles, rejected, err
}

// ReadPayablesXLSX parses a payables workbook with the same layout, the
// counterparty column holding the supplier.
func ReadPayablesXLSX(r io.Reader, n models.Normalizer) ([]*models.PayableTitle, []RowError, error) {
	var payables []*models.PayableTitle
	rejected, err := readRows(r, func(f fields) error {
		p := &models.PayableTitle{
			ID:             f.id,
			Supplier:       f.counterparty,
			IssueDate:      f.issue,
			DueDate:        f.due,
			FaceValue:      f.face,
			Balance:        f.balance,
			Status:         f.status,
			DocumentNumber: f.document,
			Category:       f.category,
			PaymentMethod:  f.method,
		}
		if err := n.Payable(p); err != nil {
			return err
		}
		payables = append(payables, p)
		return nil
	})
	return payables, rejected, err
}

func readRows(r io.Reader, emit func(fields) error) ([]RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: read workbook: %w", err)
	}
	rows, err := sheetRows(data)
	if err != nil {
		return nil, err
	}

	var rejected []RowError
	for i, row := range rows {
		if i == 0 || blank(row) {
			continue
		}
		parsed, err := parseRow(row)
		if err == nil {
			err = emit(parsed)
		}
		if err != nil {
			rejected = append(rejected, RowError{Row: i + 1, Err: err})
		}
	}
	return rejected, nil
}

func parseRow(row []string) (fields, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var f fields
	var err error
	f.id = cell(colID)
	f.counterparty = cell(colCounterparty)
	if f.issue, err = parseDate(cell(colIssueDate)); err != nil {
		return f, fmt.Errorf("issue date: %w", err)
	}
	if f.due, err = parseDate(cell(colDueDate)); err != nil {
		return f, fmt.Errorf("due date: %w", err)
	}
	if f.face, err = models.ParseMoney(cell(colFaceValue)); err != nil {
		return f, fmt.Errorf("face value: %w", err)
	}
	if f.balance, err = models.ParseMoney(cell(colBalance)); err != nil {
		return f, fmt.Errorf("balance: %w", err)
	}
	f.status = models.TitleStatus(cell(colStatus))
	f.document = cell(colDocument)
	f.category = cell(colCategory)
	f.method = cell(colPaymentMethod)
	return f, nil
}

// parseDate accepts the text layouts of models.ParseDate and Excel serial
// day numbers.
func parseDate(s string) (time.Time, error) {
	t, err := models.ParseDate(s)
	if err == nil {
		return t, nil
	}
	serial, serr := strconv.ParseFloat(s, 64)
	if serr != nil {
		return time.Time{}, err
	}
	t, serr = excelize.ExcelDateToTime(serial, false)
	if serr != nil {
		return time.Time{}, err
	}
	return models.Date(t), nil
}

// sheetRows returns the cells of the first sheet of an .xlsx workbook, or of a
// legacy .xls workbook when data is not OOXML.
func sheetRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		rows, xerr := legacyRows(data)
		if xerr != nil {
			return nil, fmt.Errorf("ingest: open workbook: %w", err)
		}
		return rows, nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ingest: read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func legacyRows(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, ErrEmptyWorkbook
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, row := range sheet.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
