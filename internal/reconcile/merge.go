package reconcile

import (
	"time"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

// Locked reports whether an import must leave the lifecycle fields of a
// persisted receivable alone: it is held by a settlement, was generated by
// one, or sits at the notary.
func Locked(persisted *models.ReceivableTitle) bool {
	return persisted.SettlementID != "" ||
		persisted.Origin == models.OriginInternalSettlement ||
		persisted.CollectionState.AtNotary()
}

// MergeReceivable returns the row a commit writes for candidate given the
// currently persisted row, which may be nil.
//
// A locked row keeps every persisted field except the descriptive ones
// (issue date, document number, category, payment method). Other rows take
// the candidate, but imports never own the origin, the settlement link or a
// settlement/notary collection state: a new row is written as a plain
// import and an existing one keeps its persisted values.
func MergeReceivable(candidate, persisted *models.ReceivableTitle) *models.ReceivableTitle {
	if persisted == nil {
		out := candidate.Clone()
		out.Origin = models.OriginExternalImport
		out.SettlementID = ""
		if out.CollectionState.Managed() {
			out.CollectionState = models.CollectionUnset
		}
		return out
	}
	if Locked(persisted) {
		out := persisted.Clone()
		if !candidate.IssueDate.IsZero() {
			out.IssueDate = candidate.IssueDate
		}
		out.DocumentNumber = candidate.DocumentNumber
		out.Category = candidate.Category
		out.PaymentMethod = candidate.PaymentMethod
		return out
	}

	out := candidate.Clone()
	if out.CollectionState == models.CollectionUnset || out.CollectionState.Managed() {
		out.CollectionState = persisted.CollectionState
	}
	out.Origin = persisted.Origin
	out.SettlementID = persisted.SettlementID
	return out
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return models.Date(a).Equal(models.Date(b))
}
