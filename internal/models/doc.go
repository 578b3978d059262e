// Package models defines the record model shared by every receivables component.
//
// # Records
//
//   - ReceivableTitle: an amount a client owes. The same table holds imported
//     titles, originals locked by a settlement and the installments a settlement
//     generates; Role tells them apart.
//   - PayableTitle: an amount owed to a supplier. No settlement or notary state.
//   - Settlement: a negotiated repayment contract ("acordo").
//   - CollectionHistoryEntry: append-only collection timeline entry for a client.
//   - AuditEntry: append-only record of a state-changing action.
//   - StagingItem: a reconciled import candidate awaiting confirmation. Never persisted.
//
// # Conventions
//
// Money is a shopspring decimal. Two amounts are equal when they differ by at most
// one cent (MoneyEqual). Calendar dates are time.Time values at UTC midnight and
// travel as ISO YYYY-MM-DD text outside the process.
//
// Relationships are carried by id strings, never pointers. A Settlement owns its
// membership through NegotiatedTitleIDs; titles only keep a SettlementID
// back-reference.
package models
