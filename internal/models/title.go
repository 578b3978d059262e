package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TitleStatus is the financial status of a title.
type TitleStatus string

const (
	StatusOpen       TitleStatus = "OPEN"
	StatusOverdue    TitleStatus = "OVERDUE"
	StatusPaid       TitleStatus = "PAID"
	StatusNegotiated TitleStatus = "NEGOTIATED"
	StatusCancelled  TitleStatus = "CANCELLED"
	StatusLiquidated TitleStatus = "LIQUIDATED"
)

// Settled reports whether the status forces a zero balance.
func (s TitleStatus) Settled() bool {
	switch s {
	case StatusPaid, StatusNegotiated, StatusCancelled, StatusLiquidated:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TitleStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusOverdue, StatusPaid, StatusNegotiated, StatusCancelled, StatusLiquidated:
		return true
	}
	return false
}

// CollectionState describes whether and why a title is excluded from normal
// collection work. The empty value means unset.
type CollectionState string

const (
	CollectionUnset                       CollectionState = ""
	CollectionCollectable                 CollectionState = "COLLECTABLE"
	CollectionBlockedBySettlement         CollectionState = "BLOCKED_BY_SETTLEMENT"
	CollectionAtNotary                    CollectionState = "AT_NOTARY"
	CollectionBlockedBySettlementAtNotary CollectionState = "BLOCKED_BY_SETTLEMENT_AT_NOTARY"
	CollectionNotCollectable              CollectionState = "NOT_COLLECTABLE"
)

// AtNotary reports whether the state is one of the protest states.
func (c CollectionState) AtNotary() bool {
	return c == CollectionAtNotary || c == CollectionBlockedBySettlementAtNotary
}

// BlockedBySettlement reports whether a settlement holds the title, with or
// without a protest on top.
func (c CollectionState) BlockedBySettlement() bool {
	return c == CollectionBlockedBySettlement || c == CollectionBlockedBySettlementAtNotary
}

// Managed reports whether only the settlement or notary workflows may set the
// state. Imports never carry these.
func (c CollectionState) Managed() bool {
	return c.BlockedBySettlement() || c.AtNotary()
}

// Origin records how a title entered the system.
type Origin string

const (
	OriginExternalImport     Origin = "EXTERNAL_IMPORT"
	OriginInternalSettlement Origin = "INTERNAL_SETTLEMENT"
)

// SettlementCategory is the category stamped on generated installments.
const SettlementCategory = "SETTLEMENT"

// ReceivableTitle is a single amount owed by a client.
//
// Invariants:
//   - 0 <= Balance <= FaceValue
//   - Balance == 0 whenever Status.Settled()
//   - SettlementID set with Origin INTERNAL_SETTLEMENT marks an installment;
//     SettlementID set with Origin EXTERNAL_IMPORT marks a locked original.
type ReceivableTitle struct {
	// ID is the stable external identifier, or a generated one for installments.
	ID string `json:"id"`

	// Client is the normalized (upper-case, accent-free) client name.
	Client string `json:"client"`

	IssueDate time.Time `json:"issue_date"`
	DueDate   time.Time `json:"due_date"`

	// LiquidationDate is set once the title is paid or liquidated.
	LiquidationDate *time.Time `json:"liquidation_date,omitempty"`

	FaceValue decimal.Decimal `json:"face_value"`
	Balance   decimal.Decimal `json:"balance"`

	Status          TitleStatus     `json:"status"`
	CollectionState CollectionState `json:"collection_state,omitempty"`

	DocumentNumber string `json:"document_number,omitempty"`
	Category       string `json:"category,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`

	Origin Origin `json:"origin"`

	// SettlementID is a back-reference only; the settlement owns membership.
	SettlementID string `json:"settlement_id,omitempty"`

	ReceivedAmount decimal.Decimal `json:"received_amount"`
	ReceiptMethod  string          `json:"receipt_method,omitempty"`
}

// Role is the tag that separates the rows sharing the title table.
type Role int

const (
	// RoleStandalone is a title not linked to any settlement.
	RoleStandalone Role = iota
	// RoleLockedOriginal is an imported title held by a settlement.
	RoleLockedOriginal
	// RoleInstallment is a title generated by a settlement.
	RoleInstallment
)

func (r Role) String() string {
	switch r {
	case RoleLockedOriginal:
		return "locked_original"
	case RoleInstallment:
		return "installment"
	default:
		return "standalone"
	}
}

// Role derives the title's role from its origin and settlement back-reference.
func (t *ReceivableTitle) Role() Role {
	if t.SettlementID == "" {
		return RoleStandalone
	}
	if t.Origin == OriginInternalSettlement {
		return RoleInstallment
	}
	return RoleLockedOriginal
}

// Overdue reports whether the title is past due on today with money outstanding.
func (t *ReceivableTitle) Overdue(today time.Time) bool {
	return !t.DueDate.IsZero() && Date(t.DueDate).Before(Date(today)) && Outstanding(t.Balance)
}

// Exposure is the amount at stake for protest and notary totals: the balance
// when one is outstanding, otherwise the face value (settlement-locked
// originals carry a zero balance).
func (t *ReceivableTitle) Exposure() decimal.Decimal {
	if Outstanding(t.Balance) {
		return t.Balance
	}
	return t.FaceValue
}

// OpenStatusFor returns OVERDUE when dueDate is before today, otherwise OPEN.
func OpenStatusFor(dueDate, today time.Time) TitleStatus {
	if !dueDate.IsZero() && Date(dueDate).Before(Date(today)) {
		return StatusOverdue
	}
	return StatusOpen
}

// Clone returns a deep copy of the title.
func (t *ReceivableTitle) Clone() *ReceivableTitle {
	if t == nil {
		return nil
	}
	c := *t
	if t.LiquidationDate != nil {
		d := *t.LiquidationDate
		c.LiquidationDate = &d
	}
	return &c
}

// PayableTitle is an amount the business owes to a supplier. It mirrors
// ReceivableTitle without settlement or notary state.
type PayableTitle struct {
	ID              string          `json:"id"`
	Supplier        string          `json:"supplier"`
	IssueDate       time.Time       `json:"issue_date"`
	DueDate         time.Time       `json:"due_date"`
	LiquidationDate *time.Time      `json:"liquidation_date,omitempty"`
	FaceValue       decimal.Decimal `json:"face_value"`
	Balance         decimal.Decimal `json:"balance"`
	Status          TitleStatus     `json:"status"`
	DocumentNumber  string          `json:"document_number,omitempty"`
	Category        string          `json:"category,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
}

// Clone returns a deep copy of the payable.
func (p *PayableTitle) Clone() *PayableTitle {
	if p == nil {
		return nil
	}
	c := *p
	if p.LiquidationDate != nil {
		d := *p.LiquidationDate
		c.LiquidationDate = &d
	}
	return &c
}
