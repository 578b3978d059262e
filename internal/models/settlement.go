package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the spacing between installment due dates.
type Frequency string

const (
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyWeekly || f == FrequencyBiweekly || f == FrequencyMonthly
}

// SettlementStatus is the state of a settlement contract.
type SettlementStatus string

const (
	SettlementActive     SettlementStatus = "ACTIVE"
	SettlementLiquidated SettlementStatus = "LIQUIDATED"
	SettlementCancelled  SettlementStatus = "CANCELLED"
)

// Settlement is a negotiated repayment contract ("acordo") that replaces one or
// more receivables with an installment schedule.
type Settlement struct {
	// ID is a UUID. It doubles as the idempotency key of the creation plan:
	// originals and installments written by Create carry it as SettlementID.
	ID string `json:"id"`

	Client string `json:"client"`

	// OriginalAmount is the sum of the negotiated titles' balances at creation.
	OriginalAmount decimal.Decimal `json:"original_amount"`

	// AgreedAmount is the amount the client committed to pay.
	AgreedAmount decimal.Decimal `json:"agreed_amount"`

	InstallmentCount     int       `json:"installment_count"`
	Frequency            Frequency `json:"frequency"`
	FirstInstallmentDate time.Time `json:"first_installment_date"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`

	Status SettlementStatus `json:"status"`

	// NegotiatedTitleIDs is the authoritative list of originals.
	NegotiatedTitleIDs []string `json:"negotiated_title_ids"`
}

// Negotiated reports whether titleID is listed as an original.
func (s *Settlement) Negotiated(titleID string) bool {
	return slices.Contains(s.NegotiatedTitleIDs, titleID)
}

// InstallmentID returns the deterministic id of the n-th (1-based) installment.
func (s *Settlement) InstallmentID(n int) string {
	return fmt.Sprintf("%s-%02d", s.ID, n)
}

// Original is a locked original viewed through its settlement.
type Original struct {
	*ReceivableTitle

	// Listed is true when the id is in NegotiatedTitleIDs.
	Listed bool

	// Flagged is true when the collection state marks the title as blocked.
	Flagged bool
}

// Consistent reports whether the id list and the status flag agree.
func (o Original) Consistent() bool {
	return o.Listed && o.Flagged
}

// Installment is a title generated by a settlement.
type Installment struct {
	*ReceivableTitle
}

// AsInstallment returns the installment view of t when t was generated by a
// settlement.
func AsInstallment(t *ReceivableTitle) (Installment, bool) {
	if t == nil || t.Role() != RoleInstallment {
		return Installment{}, false
	}
	return Installment{ReceivableTitle: t}, true
}

// AsOriginal returns the original view of t with respect to s. It reports false
// when t is neither listed by s nor flagged as blocked by a settlement.
func AsOriginal(s *Settlement, t *ReceivableTitle) (Original, bool) {
	if t == nil {
		return Original{}, false
	}
	o := Original{ReceivableTitle: t, Listed: s.Negotiated(t.ID), Flagged: t.CollectionState.BlockedBySettlement()}
	if !o.Listed && !o.Flagged {
		return Original{}, false
	}
	return o, true
}

// Members is the tagged partition of every title linked to one settlement.
type Members struct {
	Originals    []Original
	Installments []Installment
}

// Classify partitions rows linked to s into originals and installments.
//
// A row is an original when its id is listed in NegotiatedTitleIDs or its
// collection state marks it blocked by a settlement. The union guards against
// a stale id list. A leftover row that was imported rather than generated is
// also kept as an original (unlisted and unflagged) so an imported title is
// never treated as an installment.
func Classify(s *Settlement, rows []*ReceivableTitle) Members {
	var m Members
	for _, row := range rows {
		listed := s.Negotiated(row.ID)
		flagged := row.CollectionState.BlockedBySettlement()
		if listed || flagged || row.Origin != OriginInternalSettlement {
			m.Originals = append(m.Originals, Original{ReceivableTitle: row, Listed: listed, Flagged: flagged})
			continue
		}
		m.Installments = append(m.Installments, Installment{ReceivableTitle: row})
	}
	return m
}

// AllPaid reports whether every installment is PAID. A settlement with no
// installments is never fully paid.
func (m Members) AllPaid() bool {
	if len(m.Installments) == 0 {
		return false
	}
	for _, inst := range m.Installments {
		if inst.Status != StatusPaid {
			return false
		}
	}
	return true
}

// ScheduleLine is one line of an installment schedule.
type ScheduleLine struct {
	Number  int             `json:"number"`
	ID      string          `json:"id"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Status  TitleStatus     `json:"status,omitempty"`
}

// SettlementSchedule is the document-ready view of a settlement.
type SettlementSchedule struct {
	Settlement *Settlement        `json:"settlement"`
	Originals  []*ReceivableTitle `json:"originals"`
	Lines      []ScheduleLine     `json:"lines"`
}
