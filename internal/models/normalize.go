package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName upper-cases s, strips diacritics and collapses whitespace so
// "  João  da Silva" and "JOAO DA SILVA" compare equal.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(folded), " "))
}

// ParseMoney parses a non-negative amount written either as 1234.56 or in the
// Brazilian form 1.234,56, with an optional R$ prefix. Empty input is zero.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, nil
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeAmount, d)
	}
	return d.Round(2), nil
}

// ParseDate parses YYYY-MM-DD (optionally followed by a time part) or
// DD/MM/YYYY. Empty input yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) > len(DateLayout) && s[4] == '-' {
		s = s[:len(DateLayout)]
	}
	for _, layout := range []string{DateLayout, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Normalizer coerces externally supplied titles into the canonical shape.
// Today decides OPEN versus OVERDUE.
type Normalizer struct {
	Today time.Time
}

// Receivable normalizes t in place and validates it.
func (n Normalizer) Receivable(t *ReceivableTitle) error {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return ErrMissingID
	}
	t.Client = NormalizeName(t.Client)
	t.Category = NormalizeName(t.Category)
	t.PaymentMethod = NormalizeName(t.PaymentMethod)
	t.ReceiptMethod = NormalizeName(t.ReceiptMethod)
	t.DocumentNumber = strings.TrimSpace(t.DocumentNumber)
	t.IssueDate = Date(t.IssueDate)
	t.DueDate = Date(t.DueDate)
	if t.LiquidationDate != nil {
		t.LiquidationDate = DatePtr(*t.LiquidationDate)
	}
	// Settlement links and protests are only ever set by their workflows.
	t.Origin = OriginExternalImport
	t.SettlementID = ""
	if t.CollectionState.Managed() {
		t.CollectionState = CollectionUnset
	}
	if t.FaceValue.IsZero() && t.Balance.IsPositive() {
		t.FaceValue = t.Balance
	}
	t.Status = n.status(t.Status, t.Balance, t.DueDate)
	if t.Status.Settled() {
		t.Balance = decimal.Zero
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("title %s: %w", t.ID, err)
	}
	return nil
}

// Payable normalizes p in place and validates it.
func (n Normalizer) Payable(p *PayableTitle) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return ErrMissingID
	}
	p.Supplier = NormalizeName(p.Supplier)
	p.Category = NormalizeName(p.Category)
	p.PaymentMethod = NormalizeName(p.PaymentMethod)
	p.DocumentNumber = strings.TrimSpace(p.DocumentNumber)
	p.IssueDate = Date(p.IssueDate)
	p.DueDate = Date(p.DueDate)
	if p.LiquidationDate != nil {
		p.LiquidationDate = DatePtr(*p.LiquidationDate)
	}
	if p.FaceValue.IsZero() && p.Balance.IsPositive() {
		p.FaceValue = p.Balance
	}
	p.Status = n.status(p.Status, p.Balance, p.DueDate)
	if p.Status.Settled() {
		p.Balance = decimal.Zero
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("payable %s: %w", p.ID, err)
	}
	return nil
}

func (n Normalizer) status(s TitleStatus, balance decimal.Decimal, due time.Time) TitleStatus {
	s = TitleStatus(strings.ToUpper(strings.TrimSpace(string(s))))
	switch s {
	case "":
		if !Outstanding(balance) {
			return StatusPaid
		}
		return OpenStatusFor(due, n.Today)
	case StatusOpen, StatusOverdue:
		return OpenStatusFor(due, n.Today)
	}
	return s
}

// Validate checks the title invariants.
func (t *ReceivableTitle) Validate() error {
	if t.ID == "" {
		return ErrMissingID
	}
	if t.Client == "" {
		return ErrMissingCounterparty
	}
	return validateAmounts(t.FaceValue, t.Balance, t.Status)
}

// Validate checks the payable invariants.
func (p *PayableTitle) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Supplier == "" {
		return ErrMissingCounterparty
	}
	return validateAmounts(p.FaceValue, p.Balance, p.Status)
}

func validateAmounts(face, balance decimal.Decimal, status TitleStatus) error {
	if face.IsNegative() || balance.IsNegative() {
		return ErrNegativeAmount
	}
	if balance.Sub(face).GreaterThan(Tolerance) {
		return ErrBalanceExceedsFace
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if status.Settled() && !balance.IsZero() {
		return ErrSettledWithBalance
	}
	return nil
}
