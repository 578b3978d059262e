// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

var (
	// ErrNotFound is returned when a keyed lookup matches nothing.
	ErrNotFound = errors.New("storage: not found")
	// ErrUnboundedFilter is returned when an update or delete has an empty filter.
	ErrUnboundedFilter = errors.New("storage: refusing update/delete without filter")
)

// TitleFilter selects receivable titles. Zero fields are ignored; all set
// fields must match.
type TitleFilter struct {
	IDs          []string
	Client       string
	SettlementID string
	Statuses     []models.TitleStatus
	Origin       models.Origin
}

// Empty reports whether the filter selects every row.
func (f TitleFilter) Empty() bool {
	return len(f.IDs) == 0 && f.Client == "" && f.SettlementID == "" && len(f.Statuses) == 0 && f.Origin == ""
}

// TitlePatch lists the columns an update writes. Nil fields are untouched.
// A SettlementID pointing at "" clears the back-reference.
type TitlePatch struct {
	Balance         *decimal.Decimal
	Status          *models.TitleStatus
	CollectionState *models.CollectionState
	SettlementID    *string
	LiquidationDate *time.Time
	ReceivedAmount  *decimal.Decimal
	ReceiptMethod   *string
}

// PayableFilter selects payable titles.
type PayableFilter struct {
	IDs      []string
	Supplier string
}

// SettlementFilter selects settlements.
type SettlementFilter struct {
	Client   string
	Statuses []models.SettlementStatus
}

// SettlementPatch lists the settlement columns an update writes.
type SettlementPatch struct {
	Status *models.SettlementStatus
}

// Store is the persistence collaborator. Every call either succeeds or
// returns a single error; no transaction spans two calls, so a caller that
// issues several writes must tolerate a failure between any two of them.
type Store interface {
	// ListReceivables selects titles matching the filter.
	ListReceivables(ctx context.Context, filter TitleFilter) ([]*models.ReceivableTitle, error)

	// InsertReceivables adds new titles. It fails if any id already exists.
	InsertReceivables(ctx context.Context, rows []*models.ReceivableTitle) error

	// UpsertReceivables writes titles keyed by id, replacing existing rows.
	UpsertReceivables(ctx context.Context, rows []*models.ReceivableTitle) error

	// UpdateReceivables applies the patch to every matching title and returns
	// the number of rows changed.
	UpdateReceivables(ctx context.Context, filter TitleFilter, patch TitlePatch) (int64, error)

	// DeleteReceivables removes matching titles and returns the count.
	DeleteReceivables(ctx context.Context, filter TitleFilter) (int64, error)

	ListPayables(ctx context.Context, filter PayableFilter) ([]*models.PayableTitle, error)
	UpsertPayables(ctx context.Context, rows []*models.PayableTitle) error

	InsertSettlement(ctx context.Context, settlement *models.Settlement) error

	// GetSettlement returns ErrNotFound when the id is unknown.
	GetSettlement(ctx context.Context, id string) (*models.Settlement, error)
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]*models.Settlement, error)

	// UpdateSettlement returns ErrNotFound when no row has the id.
	UpdateSettlement(ctx context.Context, id string, patch SettlementPatch) error

	// DeleteSettlement returns ErrNotFound when no row has the id.
	DeleteSettlement(ctx context.Context, id string) error

	// AppendHistory adds an entry to the collection timeline.
	AppendHistory(ctx context.Context, entry *models.CollectionHistoryEntry) error

	// ListHistory returns entries for a client ("" for all), oldest first.
	ListHistory(ctx context.Context, client string) ([]models.CollectionHistoryEntry, error)

	AppendAudit(ctx context.Context, entry *models.AuditEntry) error

	// ListAudit returns the most recent entries first, at most limit rows.
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)

	// Close releases any resources held by the store.
	Close() error
}
