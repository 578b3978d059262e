package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection history action tags. ActionTaken is free-form; these are the
// tags written by this module.
const (
	ActionScheduled          = "SCHEDULED"
	ActionReturned           = "RETURNED"
	ActionNoResponse         = "NO_RESPONSE"
	ActionAgreement          = "AGREEMENT"
	ActionAgreementCancelled = "AGREEMENT_CANCELLED"
	ActionAgreementDeleted   = "AGREEMENT_DELETED"
	ActionLiquidationTotal   = "LIQUIDATION_TOTAL"
	ActionNotary             = "NOTARY"
	ActionNotaryRemoval      = "NOTARY_REMOVAL"
)

// CollectionHistoryEntry is an immutable timeline entry for a client.
type CollectionHistoryEntry struct {
	ID          string `json:"id"`
	Client      string `json:"client"`
	ActionTaken string `json:"action_taken"`
	Note        string `json:"note,omitempty"`

	// NextActionDate schedules the next collection contact.
	NextActionDate *time.Time `json:"next_action_date,omitempty"`

	// AmountDue and DaysOverdue are snapshots taken when the entry was written.
	AmountDue   decimal.Decimal `json:"amount_due"`
	DaysOverdue int             `json:"days_overdue"`

	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit actions.
const (
	AuditImportReceivables     = "IMPORT_RECEIVABLES"
	AuditImportPayables        = "IMPORT_PAYABLES"
	AuditSettlementCreate      = "SETTLEMENT_CREATE"
	AuditSettlementCancel      = "SETTLEMENT_CANCEL"
	AuditSettlementDelete      = "SETTLEMENT_DELETE"
	AuditSettlementFinalize    = "SETTLEMENT_FINALIZE"
	AuditInstallmentLiquidated = "INSTALLMENT_LIQUIDATED"
	AuditNotarySend            = "NOTARY_SEND"
	AuditNotaryRemove          = "NOTARY_REMOVE"
	AuditCollectionContact     = "COLLECTION_CONTACT"
)

// AuditEntry is an append-only record of a state-changing action.
type AuditEntry struct {
	ID        string          `json:"id"`
	User      string          `json:"user"`
	Action    string          `json:"action"`
	Client    string          `json:"client,omitempty"`
	Details   string          `json:"details,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
