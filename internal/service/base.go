package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/metrics"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

// Option configures a service.
type Option func(*base)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(b *base) { b.clock = c }
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(b *base) { b.loc = loc }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithGuard shares an in-flight guard between services. Services that touch
// the same titles must share one.
func WithGuard(g *Guard) Option {
	return func(b *base) { b.guard = g }
}

// base carries the collaborators every service needs.
type base struct {
	store   storage.Store
	clock   Clock
	loc     *time.Location
	metrics *metrics.Metrics
	guard   *Guard
}

func newBase(store storage.Store, opts []Option) base {
	b := base{
		store: store,
		clock: systemClock{},
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.guard == nil {
		b.guard = NewGuard()
	}
	return b
}

func (b *base) now() time.Time {
	return b.clock.Now().UTC()
}

// today is the current calendar day in the configured location.
func (b *base) today() time.Time {
	return models.Date(b.clock.Now().In(b.loc))
}

// observe records an operation outcome. Use as
// defer b.observe(op, time.Now(), &err).
func (b *base) observe(op string, start time.Time, errp *error) {
	err := *errp
	b.metrics.ObserveOp(op, start, err)
	var partial *PartialApplyError
	if errors.As(err, &partial) {
		b.metrics.PartialApply(op)
		slog.Error("operation partially applied",
			"op", op,
			"settlement_id", partial.SettlementID,
			"step", partial.Step,
			"error", partial.Err,
		)
	}
}

// checkpoint fails when ctx is done. Before the first write the result is a
// clean error; afterwards it is a partial application.
func checkpoint(ctx context.Context, op, settlementID, lastStep string) error {
	if err := ctx.Err(); err != nil {
		if lastStep == "" {
			return err
		}
		return &PartialApplyError{Op: op, SettlementID: settlementID, Step: lastStep, Err: err}
	}
	return nil
}

// writeFailed classifies a failed write: before any confirmed write it is a
// clean store error, afterwards a partial application.
func writeFailed(op, settlementID, lastStep string, err error) error {
	if lastStep == "" {
		return newError(KindStore, op, err)
	}
	return &PartialApplyError{Op: op, SettlementID: settlementID, Step: lastStep, Err: err}
}

// storeError wraps a failed read as KindStore, or KindNotFound for a missing key.
func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return newError(KindNotFound, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return newError(KindStore, op, err)
}

// audit appends an audit entry. It never fails the caller: errors are logged
// and counted. The entry is written even when ctx was cancelled after the
// business change went through.
func (b *base) audit(ctx context.Context, user, action, client, details string, amount decimal.Decimal) {
	entry := &models.AuditEntry{
		ID:        uuid.NewString(),
		User:      user,
		Action:    action,
		Client:    client,
		Details:   details,
		Amount:    amount,
		Timestamp: b.now(),
	}
	if err := b.store.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		b.metrics.AuditFailure()
		slog.Warn("audit append failed",
			"action", action,
			"client", client,
			"user", user,
			"error", err,
		)
	}
}

// history builds a timeline entry stamped with the current time.
func (b *base) history(client, action, note, user string, next *time.Time, amountDue decimal.Decimal, daysOverdue int) *models.CollectionHistoryEntry {
	return &models.CollectionHistoryEntry{
		ID:             uuid.NewString(),
		Client:         client,
		ActionTaken:    action,
		Note:           note,
		NextActionDate: next,
		AmountDue:      amountDue,
		DaysOverdue:    daysOverdue,
		User:           user,
		Timestamp:      b.now(),
	}
}

// maxDaysOverdue returns the largest number of days any title is past due.
func maxDaysOverdue(titles []*models.ReceivableTitle, today time.Time) int {
	most := 0
	for _, t := range titles {
		if t.DueDate.IsZero() {
			continue
		}
		if d := models.DaysBetween(t.DueDate, today); d > most {
			most = d
		}
	}
	return most
}

// dedupe drops blank and repeated ids, keeping first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
