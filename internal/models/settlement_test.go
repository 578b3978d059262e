package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMoneyEqual(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	if !MoneyEqual(a, decimal.RequireFromString("100.01")) {
		t.Error("expected one cent difference to be equal")
	}
	if MoneyEqual(a, decimal.RequireFromString("100.02")) {
		t.Error("expected two cents difference to differ")
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		start string
		n     int
		want  string
	}{
		{"2024-01-10", 1, "2024-02-10"},
		{"2024-01-10", 2, "2024-03-10"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-11-30", 3, "2025-02-28"},
	}
	for _, tt := range tests {
		start, _ := time.Parse(DateLayout, tt.start)
		if got := FormatDate(AddMonths(start, tt.n)); got != tt.want {
			t.Errorf("AddMonths(%s, %d) = %s, want %s", tt.start, tt.n, got, tt.want)
		}
	}
}

func TestRole(t *testing.T) {
	standalone := &ReceivableTitle{ID: "a", Origin: OriginExternalImport}
	original := &ReceivableTitle{ID: "b", Origin: OriginExternalImport, SettlementID: "s1"}
	installment := &ReceivableTitle{ID: "c", Origin: OriginInternalSettlement, SettlementID: "s1"}

	if standalone.Role() != RoleStandalone {
		t.Errorf("standalone role = %s", standalone.Role())
	}
	if original.Role() != RoleLockedOriginal {
		t.Errorf("original role = %s", original.Role())
	}
	if installment.Role() != RoleInstallment {
		t.Errorf("installment role = %s", installment.Role())
	}
}

func TestClassify(t *testing.T) {
	s := &Settlement{ID: "s1", NegotiatedTitleIDs: []string{"t1", "t2"}}
	rows := []*ReceivableTitle{
		{ID: "t1", Origin: OriginExternalImport, SettlementID: "s1", CollectionState: CollectionBlockedBySettlement},
		// listed but the flag was lost
		{ID: "t2", Origin: OriginExternalImport, SettlementID: "s1", CollectionState: CollectionCollectable},
		// flagged but missing from a stale id list
		{ID: "t3", Origin: OriginExternalImport, SettlementID: "s1", CollectionState: CollectionBlockedBySettlementAtNotary},
		// imported row neither listed nor flagged
		{ID: "t4", Origin: OriginExternalImport, SettlementID: "s1"},
		{ID: "s1-01", Origin: OriginInternalSettlement, SettlementID: "s1", CollectionState: CollectionNotCollectable},
		{ID: "s1-02", Origin: OriginInternalSettlement, SettlementID: "s1", CollectionState: CollectionNotCollectable},
	}

	m := Classify(s, rows)
	if len(m.Originals) != 4 {
		t.Fatalf("expected 4 originals, got %d", len(m.Originals))
	}
	if len(m.Installments) != 2 {
		t.Fatalf("expected 2 installments, got %d", len(m.Installments))
	}

	consistent := 0
	for _, o := range m.Originals {
		if o.Consistent() {
			consistent++
		}
	}
	if consistent != 1 {
		t.Errorf("expected only t1 to be consistent, got %d", consistent)
	}
}

func TestMembersAllPaid(t *testing.T) {
	paid := &ReceivableTitle{Status: StatusPaid}
	open := &ReceivableTitle{Status: StatusOpen}

	if (Members{}).AllPaid() {
		t.Error("empty installment list must not count as paid")
	}
	if (Members{Installments: []Installment{{paid}, {open}}}).AllPaid() {
		t.Error("expected not all paid")
	}
	if !(Members{Installments: []Installment{{paid}, {paid}}}).AllPaid() {
		t.Error("expected all paid")
	}
}

func TestAsInstallmentAndAsOriginal(t *testing.T) {
	s := &Settlement{ID: "S1", NegotiatedTitleIDs: []string{"t1"}}

	inst := &ReceivableTitle{ID: "S1-01", Origin: OriginInternalSettlement, SettlementID: "S1"}
	if _, ok := AsInstallment(inst); !ok {
		t.Error("Expected generated title to be an installment")
	}
	imported := &ReceivableTitle{ID: "t1", Origin: OriginExternalImport, SettlementID: "S1", CollectionState: CollectionBlockedBySettlement}
	if _, ok := AsInstallment(imported); ok {
		t.Error("Expected imported title not to be an installment")
	}

	o, ok := AsOriginal(s, imported)
	if !ok || !o.Consistent() {
		t.Errorf("Expected consistent original, got %+v ok=%v", o, ok)
	}
	stale := &ReceivableTitle{ID: "t9", Origin: OriginExternalImport, SettlementID: "S1", CollectionState: CollectionBlockedBySettlementAtNotary}
	o, ok = AsOriginal(s, stale)
	if !ok || o.Listed || !o.Flagged {
		t.Errorf("Expected flagged-only original, got %+v ok=%v", o, ok)
	}
	if _, ok := AsOriginal(s, &ReceivableTitle{ID: "x"}); ok {
		t.Error("Expected unrelated title not to be an original")
	}
}
