package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/reconcile"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const (
	opStageReceivables  = "import.stage_receivables"
	opCommitReceivables = "import.commit_receivables"
	opStagePayables     = "import.stage_payables"
	opCommitPayables    = "import.commit_payables"
)

// ImportService stages imported titles against the store and commits the
// reviewed staging list.
type ImportService struct {
	base
}

// NewImportService creates an ImportService with the given storage backend.
func NewImportService(store storage.Store, opts ...Option) *ImportService {
	return &ImportService{base: newBase(store, opts)}
}

// CommitResult reports what a commit wrote.
type CommitResult struct {
	Written int
	Summary models.StagingSummary
}

// StageReceivables validates the candidates and diffs them against the
// persisted titles with the same ids. Nothing is written.
func (s *ImportService) StageReceivables(ctx context.Context, candidates []*models.ReceivableTitle) (_ []reconcile.ReceivableItem, err error) {
	const op = opStageReceivables
	defer s.observe(op, time.Now(), &err)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		if err := c.Validate(); err != nil {
			return nil, newError(KindValidation, op, fmt.Errorf("candidate %d (%s): %w", i+1, c.ID, err))
		}
		ids[i] = c.ID
	}
	if len(ids) == 0 {
		return nil, nil
	}

	persisted, err := s.store.ListReceivables(ctx, storage.TitleFilter{IDs: dedupe(ids)})
	if err != nil {
		return nil, storeError(op, err)
	}
	items := reconcile.Receivables(candidates, persisted)
	summary := models.Summarize(items)
	slog.Info("Receivables staged", "new", summary.New, "changed", summary.Changed, "unchanged", summary.Unchanged)
	return items, nil
}

// CommitReceivables upserts every NEW or CHANGED item. Rows held by a
// settlement or under protest only get their descriptive fields refreshed.
// Committing the same list again writes the same rows.
func (s *ImportService) CommitReceivables(ctx context.Context, items []reconcile.ReceivableItem, user string) (_ *CommitResult, err error) {
	const op = opCommitReceivables
	defer s.observe(op, time.Now(), &err)

	result := &CommitResult{Summary: models.Summarize(items)}
	var ids []string
	var pending []*models.ReceivableTitle
	for _, item := range items {
		if !item.Status.Pending() || item.Data == nil {
			continue
		}
		if err := item.Data.Validate(); err != nil {
			return nil, newError(KindValidation, op, fmt.Errorf("title %s: %w", item.Data.ID, err))
		}
		ids = append(ids, item.Data.ID)
		pending = append(pending, item.Data)
	}
	if len(pending) == 0 {
		return result, nil
	}

	release, err := s.guard.Acquire(op, titleKeys(dedupe(ids))...)
	if err != nil {
		return nil, err
	}
	defer release()

	persisted, err := s.store.ListReceivables(ctx, storage.TitleFilter{IDs: dedupe(ids)})
	if err != nil {
		return nil, storeError(op, err)
	}
	current := make(map[string]*models.ReceivableTitle, len(persisted))
	for _, p := range persisted {
		current[p.ID] = p
	}

	rows := make([]*models.ReceivableTitle, len(pending))
	total := decimal.Zero
	for i, c := range pending {
		rows[i] = reconcile.MergeReceivable(c, current[c.ID])
		total = total.Add(rows[i].Balance)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.UpsertReceivables(ctx, rows); err != nil {
		return nil, newError(KindStore, op, err)
	}
	result.Written = len(rows)

	details := fmt.Sprintf("%d new, %d changed, %d unchanged", result.Summary.New, result.Summary.Changed, result.Summary.Unchanged)
	s.audit(ctx, user, models.AuditImportReceivables, "", details, total)
	slog.Info("Receivables committed", "written", result.Written)
	return result, nil
}

// StagePayables validates the candidates and diffs them against the
// persisted payables with the same ids.
func (s *ImportService) StagePayables(ctx context.Context, candidates []*models.PayableTitle) (_ []reconcile.PayableItem, err error) {
	const op = opStagePayables
	defer s.observe(op, time.Now(), &err)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		switch {
		case c.ID == "":
			return nil, newError(KindValidation, op, fmt.Errorf("candidate %d: %w", i+1, models.ErrMissingID))
		case c.Supplier == "":
			return nil, newError(KindValidation, op, fmt.Errorf("candidate %d (%s): %w", i+1, c.ID, models.ErrMissingCounterparty))
		}
		ids[i] = c.ID
	}
	if len(ids) == 0 {
		return nil, nil
	}

	persisted, err := s.store.ListPayables(ctx, storage.PayableFilter{IDs: dedupe(ids)})
	if err != nil {
		return nil, storeError(op, err)
	}
	items := reconcile.Payables(candidates, persisted)
	summary := models.Summarize(items)
	slog.Info("Payables staged", "new", summary.New, "changed", summary.Changed, "unchanged", summary.Unchanged)
	return items, nil
}

// CommitPayables upserts every NEW or CHANGED payable.
func (s *ImportService) CommitPayables(ctx context.Context, items []reconcile.PayableItem, user string) (_ *CommitResult, err error) {
	const op = opCommitPayables
	defer s.observe(op, time.Now(), &err)

	result := &CommitResult{Summary: models.Summarize(items)}
	var rows []*models.PayableTitle
	total := decimal.Zero
	for _, item := range items {
		if !item.Status.Pending() || item.Data == nil {
			continue
		}
		if err := item.Data.Validate(); err != nil {
			return nil, newError(KindValidation, op, fmt.Errorf("payable %s: %w", item.Data.ID, err))
		}
		rows = append(rows, item.Data)
		total = total.Add(item.Data.Balance)
	}
	if len(rows) == 0 {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.UpsertPayables(ctx, rows); err != nil {
		return nil, newError(KindStore, op, err)
	}
	result.Written = len(rows)

	details := fmt.Sprintf("%d new, %d changed, %d unchanged", result.Summary.New, result.Summary.Changed, result.Summary.Unchanged)
	s.audit(ctx, user, models.AuditImportPayables, "", details, total)
	slog.Info("Payables committed", "written", result.Written)
	return result, nil
}
