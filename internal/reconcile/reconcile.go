// Package reconcile diffs imported titles against persisted ones.
//
// Both title types use one comparison policy: counterparty, balance, status,
// face value and due date. Money compares with the 0.01 tolerance.
package reconcile

import (
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

// Field names reported in ChangedFields.
const (
	FieldClient    = "client"
	FieldSupplier  = "supplier"
	FieldBalance   = "balance"
	FieldStatus    = "status"
	FieldFaceValue = "face_value"
	FieldDueDate   = "due_date"
)

// ReceivableItem is a staged receivable.
type ReceivableItem = models.StagingItem[*models.ReceivableTitle]

// PayableItem is a staged payable.
type PayableItem = models.StagingItem[*models.PayableTitle]

// Receivables produces one staging item per candidate, in candidate order.
func Receivables(candidates, persisted []*models.ReceivableTitle) []ReceivableItem {
	byID := make(map[string]*models.ReceivableTitle, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}

	items := make([]ReceivableItem, 0, len(candidates))
	for _, c := range candidates {
		p, ok := byID[c.ID]
		if !ok {
			items = append(items, ReceivableItem{Data: c, Status: models.StagingNew})
			continue
		}
		item := ReceivableItem{Data: c, Status: models.StagingUnchanged, Locked: Locked(p)}
		if changed := ReceivableChanges(c, p); len(changed) > 0 {
			item.Status = models.StagingChanged
			item.ChangedFields = changed
		}
		items = append(items, item)
	}
	return items
}

// Payables produces one staging item per candidate, in candidate order.
func Payables(candidates, persisted []*models.PayableTitle) []PayableItem {
	byID := make(map[string]*models.PayableTitle, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}

	items := make([]PayableItem, 0, len(candidates))
	for _, c := range candidates {
		p, ok := byID[c.ID]
		if !ok {
			items = append(items, PayableItem{Data: c, Status: models.StagingNew})
			continue
		}
		item := PayableItem{Data: c, Status: models.StagingUnchanged}
		if changed := PayableChanges(c, p); len(changed) > 0 {
			item.Status = models.StagingChanged
			item.ChangedFields = changed
		}
		items = append(items, item)
	}
	return items
}

// ReceivableChanges lists the compared fields that differ.
func ReceivableChanges(candidate, persisted *models.ReceivableTitle) []string {
	var changed []string
	if candidate.Client != persisted.Client {
		changed = append(changed, FieldClient)
	}
	return append(changed, commonChanges(
		!models.MoneyEqual(candidate.Balance, persisted.Balance),
		candidate.Status != persisted.Status,
		!models.MoneyEqual(candidate.FaceValue, persisted.FaceValue),
		!sameDay(candidate.DueDate, persisted.DueDate),
	)...)
}

// PayableChanges lists the compared fields that differ.
func PayableChanges(candidate, persisted *models.PayableTitle) []string {
	var changed []string
	if candidate.Supplier != persisted.Supplier {
		changed = append(changed, FieldSupplier)
	}
	return append(changed, commonChanges(
		!models.MoneyEqual(candidate.Balance, persisted.Balance),
		candidate.Status != persisted.Status,
		!models.MoneyEqual(candidate.FaceValue, persisted.FaceValue),
		!sameDay(candidate.DueDate, persisted.DueDate),
	)...)
}

func commonChanges(balance, status, face, due bool) []string {
	var changed []string
	if balance {
		changed = append(changed, FieldBalance)
	}
	if status {
		changed = append(changed, FieldStatus)
	}
	if face {
		changed = append(changed, FieldFaceValue)
	}
	if due {
		changed = append(changed, FieldDueDate)
	}
	return changed
}
