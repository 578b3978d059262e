package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/schollz/closestmatch"
	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/calculator"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const (
	opDebtors       = "collection.debtors"
	opRecordContact = "collection.record_contact"
	opHistory       = "collection.history"
)

// CollectionService rolls titles and history into per-client debtor
// summaries and work queues. It is read-side except for RecordContact.
type CollectionService struct {
	base
}

// NewCollectionService creates a CollectionService with the given storage backend.
func NewCollectionService(store storage.Store, opts ...Option) *CollectionService {
	return &CollectionService{base: newBase(store, opts)}
}

// DebtorSummary is one client's aging rollup plus its collection schedule.
type DebtorSummary struct {
	calculator.DebtorAging
	NextActionDate *time.Time
	Queue          calculator.Queue
}

// Queues splits debtors into the two collection work queues.
type Queues struct {
	DueNow    []DebtorSummary
	Scheduled []DebtorSummary
}

// Debtors computes the summaries of every client with overdue or protested
// exposure, largest overdue first.
func (s *CollectionService) Debtors(ctx context.Context) (_ []DebtorSummary, err error) {
	defer s.observe(opDebtors, time.Now(), &err)

	titles, err := s.store.ListReceivables(ctx, storage.TitleFilter{})
	if err != nil {
		return nil, storeError(opDebtors, err)
	}
	entries, err := s.store.ListHistory(ctx, "")
	if err != nil {
		return nil, storeError(opDebtors, err)
	}
	return summarize(titles, entries, s.today()), nil
}

func summarize(titles []*models.ReceivableTitle, entries []models.CollectionHistoryEntry, today time.Time) []DebtorSummary {
	history := make(map[string][]models.CollectionHistoryEntry)
	for _, e := range entries {
		history[e.Client] = append(history[e.Client], e)
	}

	var debtors []DebtorSummary
	for _, agg := range calculator.AgeTitles(titles, today) {
		if !agg.Debtor() {
			continue
		}
		next := calculator.LatestNextAction(history[agg.Client])
		debtors = append(debtors, DebtorSummary{
			DebtorAging:    agg,
			NextActionDate: next,
			Queue:          calculator.QueueFor(next, today),
		})
	}
	return debtors
}

// Queues returns the debtors split by queue, each keeping Debtors order.
func (s *CollectionService) Queues(ctx context.Context) (*Queues, error) {
	debtors, err := s.Debtors(ctx)
	if err != nil {
		return nil, err
	}
	q := &Queues{}
	for _, d := range debtors {
		if d.Queue == calculator.QueueScheduled {
			q.Scheduled = append(q.Scheduled, d)
		} else {
			q.DueNow = append(q.DueNow, d)
		}
	}
	return q, nil
}

// ContactRequest records one collection contact.
type ContactRequest struct {
	Client         string
	Action         string
	Note           string
	NextActionDate *time.Time
	User           string
}

// RecordContact appends a history entry with the client's current amount
// due and days overdue as snapshots.
func (s *CollectionService) RecordContact(ctx context.Context, req ContactRequest) (_ *models.CollectionHistoryEntry, err error) {
	const op = opRecordContact
	defer s.observe(op, time.Now(), &err)

	client := models.NormalizeName(req.Client)
	action := strings.ToUpper(strings.TrimSpace(req.Action))
	if client == "" {
		return nil, errorf(KindValidation, op, "client is required")
	}
	if action == "" {
		return nil, errorf(KindValidation, op, "action is required")
	}

	titles, err := s.store.ListReceivables(ctx, storage.TitleFilter{Client: client})
	if err != nil {
		return nil, storeError(op, err)
	}
	if len(titles) == 0 {
		return nil, s.unknownClient(ctx, op, client)
	}

	today := s.today()
	amountDue, days := decimal.Zero, 0
	if aging := calculator.AgeTitles(titles, today); len(aging) > 0 {
		amountDue, days = aging[0].TotalOverdue, aging[0].MaxDaysOverdue
	}

	var next *time.Time
	if req.NextActionDate != nil {
		next = models.DatePtr(*req.NextActionDate)
	}
	entry := s.history(client, action, strings.TrimSpace(req.Note), req.User, next, amountDue, days)
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		return nil, newError(KindStore, op, err)
	}

	s.audit(ctx, req.User, models.AuditCollectionContact, client, action+": "+entry.Note, amountDue)
	slog.Info("Collection contact recorded", "client", client, "action", action, "next_action_date", models.FormatDate(derefDate(next)))
	return entry, nil
}

// unknownClient reports a client without titles, naming the closest known
// client when there is one.
func (s *CollectionService) unknownClient(ctx context.Context, op, client string) error {
	titles, err := s.store.ListReceivables(ctx, storage.TitleFilter{})
	if err != nil {
		return errorf(KindNotFound, op, "client %s has no titles", client)
	}
	seen := make(map[string]bool)
	var names []string
	for _, t := range titles {
		if !seen[t.Client] {
			seen[t.Client] = true
			names = append(names, t.Client)
		}
	}
	if len(names) > 0 {
		if match := closestmatch.New(names, []int{2, 3}).Closest(client); match != "" {
			return errorf(KindNotFound, op, "client %s has no titles (closest match: %s)", client, match)
		}
	}
	return errorf(KindNotFound, op, "client %s has no titles", client)
}

// History returns a client's collection timeline, oldest first.
func (s *CollectionService) History(ctx context.Context, client string) ([]models.CollectionHistoryEntry, error) {
	client = models.NormalizeName(client)
	if client == "" {
		return nil, errorf(KindValidation, opHistory, "client is required")
	}
	entries, err := s.store.ListHistory(ctx, client)
	if err != nil {
		return nil, storeError(opHistory, err)
	}
	return entries, nil
}

// AuditLog returns the most recent audit entries.
func (s *CollectionService) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries, err := s.store.ListAudit(ctx, limit)
	if err != nil {
		return nil, storeError("audit.list", err)
	}
	return entries, nil
}

func derefDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
