package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/calculator"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const (
	opCreate           = "settlement.create"
	opFinalize         = "settlement.finalize"
	opCancel           = "settlement.cancel"
	opDelete           = "settlement.delete"
	opLiquidate        = "installment.liquidate"
	opGetSettlement    = "settlement.get"
	opListSettlements  = "settlement.list"
	opSchedule         = "settlement.schedule"
	opCheckConsistency = "settlement.check_consistency"
)

// Steps of the settlement plans, named in PartialApplyError.Step.
const (
	StepSettlementRow      = "settlement_row"
	StepLockOriginals      = "lock_originals"
	StepInstallments       = "installments"
	StepHistory            = "history"
	StepLiquidateOriginals = "liquidate_originals"
	StepSettlementStatus   = "settlement_status"
	StepCancelInstallments = "cancel_installments"
	StepDeleteInstallments = "delete_installments"
	StepRestoreOriginals   = "restore_originals"
	StepDeleteSettlement   = "delete_settlement"
)

// SettlementService runs the settlement lifecycle and installment liquidation.
//
// Every mutating call is a fixed sequence of single-call store writes. The
// settlement id is written first by Create and removed last by Delete, so it
// marks every partially applied plan; Cancel and Delete are the repair flows
// and are safe to re-run on their own partial results.
type SettlementService struct {
	base
}

// NewSettlementService creates a SettlementService with the given storage backend.
func NewSettlementService(store storage.Store, opts ...Option) *SettlementService {
	return &SettlementService{base: newBase(store, opts)}
}

// CreateSettlementRequest describes a new settlement.
type CreateSettlementRequest struct {
	// ID is an optional idempotency key. A new UUID is used when empty.
	ID string

	Client               string
	TitleIDs             []string
	AgreedAmount         decimal.Decimal
	InstallmentCount     int
	Frequency            models.Frequency
	FirstInstallmentDate time.Time
	User                 string
}

// Create negotiates the titles into a new settlement.
//
// Plan: (1) settlement row, (2) lock originals, (3) upsert installments with
// deterministic ids, (4) AGREEMENT history entry. Steps 2 to 4 can be
// re-applied safely; a failure after step 1 returns *PartialApplyError.
func (s *SettlementService) Create(ctx context.Context, req CreateSettlementRequest) (_ *models.Settlement, err error) {
	const op = opCreate
	defer s.observe(op, time.Now(), &err)

	slog.Info("Create settlement request received",
		"client", req.Client,
		"titles_count", len(req.TitleIDs),
		"installments", req.InstallmentCount,
		"frequency", req.Frequency,
	)

	client := models.NormalizeName(req.Client)
	ids := dedupe(req.TitleIDs)
	switch {
	case client == "":
		return nil, errorf(KindValidation, op, "client is required")
	case len(ids) == 0:
		return nil, errorf(KindValidation, op, "no titles selected")
	case len(ids) != len(req.TitleIDs):
		return nil, errorf(KindValidation, op, "title ids must be distinct and non-empty")
	case req.InstallmentCount < 1:
		return nil, errorf(KindValidation, op, "installment count must be at least 1")
	case req.InstallmentCount > calculator.MaxInstallments:
		return nil, errorf(KindValidation, op, "installment count must be at most %d", calculator.MaxInstallments)
	case !req.AgreedAmount.IsPositive():
		return nil, errorf(KindValidation, op, "agreed amount must be positive")
	case !req.Frequency.Valid():
		return nil, errorf(KindValidation, op, "unknown frequency %q", req.Frequency)
	case req.FirstInstallmentDate.IsZero():
		return nil, errorf(KindValidation, op, "first installment date is required")
	}

	settlement := &models.Settlement{
		ID:                   req.ID,
		Client:               client,
		AgreedAmount:         req.AgreedAmount.Round(2),
		InstallmentCount:     req.InstallmentCount,
		Frequency:            req.Frequency,
		FirstInstallmentDate: models.Date(req.FirstInstallmentDate),
		CreatedAt:            s.now(),
		CreatedBy:            req.User,
		Status:               models.SettlementActive,
		NegotiatedTitleIDs:   ids,
	}
	if settlement.ID == "" {
		settlement.ID = uuid.NewString()
	}
	lines, err := calculator.BuildSchedule(settlement)
	if err != nil {
		return nil, newError(KindValidation, op, err)
	}

	release, err := s.guard.Acquire(op, append([]string{settlementKey(settlement.ID)}, titleKeys(ids)...)...)
	if err != nil {
		return nil, err
	}
	defer release()

	titles, err := s.store.ListReceivables(ctx, storage.TitleFilter{IDs: ids})
	if err != nil {
		return nil, storeError(op, err)
	}
	if err := checkNegotiable(op, client, ids, titles); err != nil {
		return nil, err
	}
	if req.ID != "" {
		_, err := s.store.GetSettlement(ctx, settlement.ID)
		if err == nil {
			return nil, errorf(KindConflict, op, "settlement %s already exists", settlement.ID)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, storeError(op, err)
		}
	}

	balances := make([]decimal.Decimal, len(titles))
	for i, t := range titles {
		balances[i] = t.Balance
	}
	settlement.OriginalAmount = models.SumMoney(balances...)
	today := s.today()

	step := ""
	if err := checkpoint(ctx, op, settlement.ID, step); err != nil {
		return nil, err
	}
	if err := s.store.InsertSettlement(ctx, settlement); err != nil {
		return nil, writeFailed(op, settlement.ID, step, err)
	}
	step = StepSettlementRow

	if err := checkpoint(ctx, op, settlement.ID, step); err != nil {
		return nil, err
	}
	if err := s.lockOriginals(ctx, settlement.ID, titles); err != nil {
		return nil, writeFailed(op, settlement.ID, step, err)
	}
	step = StepLockOriginals

	if err := checkpoint(ctx, op, settlement.ID, step); err != nil {
		return nil, err
	}
	if err := s.store.UpsertReceivables(ctx, calculator.InstallmentTitles(settlement, lines)); err != nil {
		return nil, writeFailed(op, settlement.ID, step, err)
	}
	step = StepInstallments

	if err := checkpoint(ctx, op, settlement.ID, step); err != nil {
		return nil, err
	}
	note := fmt.Sprintf("Settlement %s: %d titles totalling %s renegotiated for %s in %d %s installments",
		settlement.ID, len(ids), settlement.OriginalAmount.StringFixed(2), settlement.AgreedAmount.StringFixed(2),
		settlement.InstallmentCount, strings.ToLower(string(settlement.Frequency)))
	first := settlement.FirstInstallmentDate
	entry := s.history(client, models.ActionAgreement, note, req.User, &first, settlement.AgreedAmount, maxDaysOverdue(titles, today))
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		return nil, writeFailed(op, settlement.ID, step, err)
	}

	s.audit(ctx, req.User, models.AuditSettlementCreate, client, note, settlement.AgreedAmount)
	slog.Info("Settlement created",
		"settlement_id", settlement.ID,
		"client", client,
		"original_amount", settlement.OriginalAmount.StringFixed(2),
		"agreed_amount", settlement.AgreedAmount.StringFixed(2),
	)
	return settlement, nil
}

// checkNegotiable verifies every requested title before anything is written.
func checkNegotiable(op, client string, ids []string, titles []*models.ReceivableTitle) error {
	found := make(map[string]*models.ReceivableTitle, len(titles))
	for _, t := range titles {
		found[t.ID] = t
	}
	for _, id := range ids {
		t, ok := found[id]
		if !ok {
			return errorf(KindNotFound, op, "title %s not found", id)
		}
		if t.Client != client {
			return errorf(KindValidation, op, "title %s belongs to %s, not %s", id, t.Client, client)
		}
		if t.Origin == models.OriginInternalSettlement {
			return errorf(KindConflict, op, "title %s is an installment of settlement %s", id, t.SettlementID)
		}
		if t.SettlementID != "" || t.CollectionState.BlockedBySettlement() {
			return errorf(KindConflict, op, "title %s is already linked to settlement %s", id, t.SettlementID)
		}
		if !t.Balance.IsPositive() {
			return errorf(KindValidation, op, "title %s has no outstanding balance", id)
		}
	}
	return nil
}

// lockOriginals zeroes the negotiated titles and links them to the
// settlement. Titles under protest stay under protest.
func (s *SettlementService) lockOriginals(ctx context.Context, settlementID string, titles []*models.ReceivableTitle) error {
	var plain, protested []string
	for _, t := range titles {
		if t.CollectionState.AtNotary() {
			protested = append(protested, t.ID)
		} else {
			plain = append(plain, t.ID)
		}
	}

	zero := decimal.Zero
	status := models.StatusNegotiated
	groups := []struct {
		ids   []string
		state models.CollectionState
	}{
		{plain, models.CollectionBlockedBySettlement},
		{protested, models.CollectionBlockedBySettlementAtNotary},
	}
	for _, g := range groups {
		if len(g.ids) == 0 {
			continue
		}
		state := g.state
		n, err := s.store.UpdateReceivables(ctx, storage.TitleFilter{IDs: g.ids}, storage.TitlePatch{
			Balance:         &zero,
			Status:          &status,
			CollectionState: &state,
			SettlementID:    &settlementID,
		})
		if err != nil {
			return err
		}
		if int(n) != len(g.ids) {
			return fmt.Errorf("locked %d of %d titles", n, len(g.ids))
		}
	}
	return nil
}

// load fetches a settlement and every title linked to it, including listed
// originals whose back-reference was lost.
func (s *SettlementService) load(ctx context.Context, op, id string) (*models.Settlement, models.Members, error) {
	if id == "" {
		return nil, models.Members{}, errorf(KindValidation, op, "settlement id is required")
	}
	settlement, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, models.Members{}, storeError(op, err)
	}
	rows, err := s.store.ListReceivables(ctx, storage.TitleFilter{SettlementID: id})
	if err != nil {
		return nil, models.Members{}, storeError(op, err)
	}

	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		seen[r.ID] = true
	}
	var detached []string
	for _, tid := range settlement.NegotiatedTitleIDs {
		if !seen[tid] {
			detached = append(detached, tid)
		}
	}
	if len(detached) > 0 {
		extra, err := s.store.ListReceivables(ctx, storage.TitleFilter{IDs: detached})
		if err != nil {
			return nil, models.Members{}, storeError(op, err)
		}
		rows = append(rows, extra...)
	}
	return settlement, models.Classify(settlement, rows), nil
}

func memberIDs(m models.Members) []string {
	ids := make([]string, 0, len(m.Originals)+len(m.Installments))
	for _, o := range m.Originals {
		ids = append(ids, o.ID)
	}
	for _, inst := range m.Installments {
		ids = append(ids, inst.ID)
	}
	return ids
}

// loadLocked loads the settlement and holds the title keys of its members
// for the rest of op. Members are read again once the keys are held, so a
// notary move or liquidation that finished in between is seen. The caller
// must hold the settlement key.
func (s *SettlementService) loadLocked(ctx context.Context, op, id string) (*models.Settlement, models.Members, func(), error) {
	_, members, err := s.load(ctx, op, id)
	if err != nil {
		return nil, models.Members{}, nil, err
	}
	locked := memberIDs(members)
	release, err := s.guard.Acquire(op, titleKeys(locked)...)
	if err != nil {
		return nil, models.Members{}, nil, err
	}

	settlement, members, err := s.load(ctx, op, id)
	if err != nil {
		release()
		return nil, models.Members{}, nil, err
	}
	held := make(map[string]bool, len(locked))
	for _, tid := range locked {
		held[tid] = true
	}
	for _, tid := range memberIDs(members) {
		if !held[tid] {
			release()
			return nil, models.Members{}, nil, errorf(KindConflict, op, "settlement %s gained title %s while loading, retry", id, tid)
		}
	}
	return settlement, members, release, nil
}

// Finalize closes a settlement whose installments are all paid.
//
// Plan: (1) liquidate originals, (2) settlement status, (3) LIQUIDATION_TOTAL
// history entry. The settlement stays ACTIVE until step 2, so a failed
// Finalize can be re-run.
func (s *SettlementService) Finalize(ctx context.Context, id, user string) (_ *models.Settlement, err error) {
	const op = opFinalize
	defer s.observe(op, time.Now(), &err)

	slog.Info("Finalize settlement request received", "settlement_id", id)

	release, err := s.guard.Acquire(op, settlementKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	settlement, members, releaseTitles, err := s.loadLocked(ctx, op, id)
	if err != nil {
		return nil, err
	}
	defer releaseTitles()

	if settlement.Status != models.SettlementActive {
		return nil, errorf(KindConflict, op, "settlement %s is %s", id, settlement.Status)
	}
	if !members.AllPaid() {
		paid := 0
		for _, inst := range members.Installments {
			if inst.Status == models.StatusPaid {
				paid++
			}
		}
		return nil, errorf(KindPreconditionNotMet, op, "not all installments paid (%d of %d)", paid, len(members.Installments))
	}

	today := s.today()
	originalIDs := make([]string, 0, len(members.Originals))
	for _, o := range members.Originals {
		if o.SettlementID == id || o.Listed {
			originalIDs = append(originalIDs, o.ID)
		}
	}

	step := ""
	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	if len(originalIDs) > 0 {
		zero := decimal.Zero
		status := models.StatusLiquidated
		state := models.CollectionNotCollectable
		if _, err := s.store.UpdateReceivables(ctx, storage.TitleFilter{IDs: originalIDs}, storage.TitlePatch{
			Balance:         &zero,
			Status:          &status,
			CollectionState: &state,
			LiquidationDate: &today,
		}); err != nil {
			return nil, writeFailed(op, id, step, err)
		}
		step = StepLiquidateOriginals
	}

	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	liquidated := models.SettlementLiquidated
	if err := s.store.UpdateSettlement(ctx, id, storage.SettlementPatch{Status: &liquidated}); err != nil {
		return nil, writeFailed(op, id, step, err)
	}
	step = StepSettlementStatus
	settlement.Status = liquidated

	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	note := fmt.Sprintf("Settlement %s fully paid: %d original titles liquidated", id, len(originalIDs))
	entry := s.history(settlement.Client, models.ActionLiquidationTotal, note, user, nil, decimal.Zero, 0)
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		return nil, writeFailed(op, id, step, err)
	}

	s.audit(ctx, user, models.AuditSettlementFinalize, settlement.Client, note, settlement.AgreedAmount)
	slog.Info("Settlement finalized", "settlement_id", id, "originals", len(originalIDs))
	return settlement, nil
}

// ReleaseReport describes what Cancel or Delete did to a settlement's titles.
type ReleaseReport struct {
	Settlement *models.Settlement

	// Restored lists originals put back into collection.
	Restored []string

	// Installments lists installments cancelled or removed.
	Installments []string

	// Skipped lists listed ids that were not restored: missing rows, rows
	// linked to another settlement, or rows already restored.
	Skipped []string

	// Disagreements lists originals where the id list and the collection
	// state flag disagree.
	Disagreements []string
}

// release computes the restoration plan shared by Cancel and Delete.
func (s *SettlementService) release(op string, settlement *models.Settlement, m models.Members, today time.Time) (*ReleaseReport, []restoration) {
	report := &ReleaseReport{Settlement: settlement}
	present := make(map[string]bool, len(m.Originals))
	var restored []restoration

	for _, o := range m.Originals {
		present[o.ID] = true
		if !o.Consistent() {
			report.Disagreements = append(report.Disagreements, o.ID)
			slog.Warn("settlement membership disagreement",
				"op", op,
				"settlement_id", settlement.ID,
				"title_id", o.ID,
				"listed", o.Listed,
				"flagged", o.Flagged,
			)
		}
		switch {
		case o.SettlementID == settlement.ID,
			o.SettlementID == "" && o.Status == models.StatusNegotiated:
			restored = append(restored, restoreOriginal(o.ReceivableTitle, today))
			report.Restored = append(report.Restored, o.ID)
		default:
			report.Skipped = append(report.Skipped, o.ID)
		}
	}
	for _, id := range settlement.NegotiatedTitleIDs {
		if !present[id] {
			report.Skipped = append(report.Skipped, id)
			slog.Warn("negotiated title missing", "op", op, "settlement_id", settlement.ID, "title_id", id)
		}
	}
	for _, inst := range m.Installments {
		report.Installments = append(report.Installments, inst.ID)
	}
	return report, restored
}

// restoration is a locked original put back into collection. held is the
// row as it was read under the title keys.
type restoration struct {
	held  *models.ReceivableTitle
	title *models.ReceivableTitle
}

// restoreOriginal puts a locked original back into collection at its face value.
func restoreOriginal(t *models.ReceivableTitle, today time.Time) restoration {
	r := t.Clone()
	r.Balance = r.FaceValue
	r.Status = models.OpenStatusFor(r.DueDate, today)
	r.CollectionState = models.CollectionCollectable
	if t.CollectionState.AtNotary() {
		r.CollectionState = models.CollectionAtNotary
	}
	r.SettlementID = ""
	r.LiquidationDate = nil
	return restoration{held: t, title: r}
}

// restoreOriginals patches the lifecycle columns of each original. A patch
// only matches while the row still carries the link and status it was read
// with, so nothing written by another workflow is replaced.
func (s *SettlementService) restoreOriginals(ctx context.Context, restored []restoration) error {
	unlinked := ""
	var noDate time.Time
	for _, r := range restored {
		filter := storage.TitleFilter{IDs: []string{r.held.ID}, Statuses: []models.TitleStatus{r.held.Status}}
		if r.held.SettlementID != "" {
			filter.SettlementID = r.held.SettlementID
		}
		balance, status, state := r.title.Balance, r.title.Status, r.title.CollectionState
		n, err := s.store.UpdateReceivables(ctx, filter, storage.TitlePatch{
			Balance:         &balance,
			Status:          &status,
			CollectionState: &state,
			SettlementID:    &unlinked,
			LiquidationDate: &noDate,
		})
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("original %s changed while being restored", r.held.ID)
		}
	}
	return nil
}

func restoredTitles(restored []restoration) []*models.ReceivableTitle {
	out := make([]*models.ReceivableTitle, len(restored))
	for i, r := range restored {
		out[i] = r.title
	}
	return out
}

// Cancel unwinds an ACTIVE settlement, keeping its installment rows as
// CANCELLED.
//
// Plan: (1) cancel installments, (2) restore originals, (3) settlement
// status, (4) AGREEMENT_CANCELLED history entry. It is also the repair flow
// for a partially applied Create or Cancel.
func (s *SettlementService) Cancel(ctx context.Context, id, user string) (_ *ReleaseReport, err error) {
	const op = opCancel
	defer s.observe(op, time.Now(), &err)

	slog.Info("Cancel settlement request received", "settlement_id", id)

	release, err := s.guard.Acquire(op, settlementKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	settlement, members, releaseTitles, err := s.loadLocked(ctx, op, id)
	if err != nil {
		return nil, err
	}
	defer releaseTitles()

	if settlement.Status != models.SettlementActive {
		return nil, errorf(KindConflict, op, "settlement %s is %s", id, settlement.Status)
	}

	today := s.today()
	report, restored := s.release(op, settlement, members, today)

	step := ""
	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	if len(report.Installments) > 0 {
		zero := decimal.Zero
		status := models.StatusCancelled
		state := models.CollectionNotCollectable
		if _, err := s.store.UpdateReceivables(ctx, storage.TitleFilter{IDs: report.Installments}, storage.TitlePatch{
			Balance:         &zero,
			Status:          &status,
			CollectionState: &state,
		}); err != nil {
			return nil, writeFailed(op, id, step, err)
		}
		step = StepCancelInstallments
	}

	if len(restored) > 0 {
		if err := checkpoint(ctx, op, id, step); err != nil {
			return nil, err
		}
		if err := s.restoreOriginals(ctx, restored); err != nil {
			return nil, writeFailed(op, id, step, err)
		}
		step = StepRestoreOriginals
	}

	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	cancelled := models.SettlementCancelled
	if err := s.store.UpdateSettlement(ctx, id, storage.SettlementPatch{Status: &cancelled}); err != nil {
		return nil, writeFailed(op, id, step, err)
	}
	step = StepSettlementStatus
	settlement.Status = cancelled

	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	note := fmt.Sprintf("Settlement %s cancelled: %d originals restored, %d installments cancelled",
		id, len(report.Restored), len(report.Installments))
	if err := s.store.AppendHistory(ctx, s.releaseHistory(settlement.Client, models.ActionAgreementCancelled, note, user, restoredTitles(restored), today)); err != nil {
		return nil, writeFailed(op, id, step, err)
	}

	s.audit(ctx, user, models.AuditSettlementCancel, settlement.Client, note, restoredTotal(restoredTitles(restored)))
	slog.Info("Settlement cancelled",
		"settlement_id", id,
		"restored", len(report.Restored),
		"installments", len(report.Installments),
		"disagreements", len(report.Disagreements),
	)
	return report, nil
}

// Delete removes a settlement and its installments and restores the
// originals. confirm must be true; the action cannot be undone.
//
// Plan: (1) delete installments, (2) restore originals, (3) delete the
// settlement row, (4) AGREEMENT_DELETED history entry. The settlement row goes
// last so a failed Delete can be re-run.
func (s *SettlementService) Delete(ctx context.Context, id string, confirm bool, user string) (_ *ReleaseReport, err error) {
	const op = opDelete
	defer s.observe(op, time.Now(), &err)

	slog.Info("Delete settlement request received", "settlement_id", id, "confirm", confirm)

	if !confirm {
		return nil, errorf(KindValidation, op, "deleting settlement %s requires confirmation", id)
	}

	release, err := s.guard.Acquire(op, settlementKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	settlement, members, releaseTitles, err := s.loadLocked(ctx, op, id)
	if err != nil {
		return nil, err
	}
	defer releaseTitles()

	if settlement.Status == models.SettlementLiquidated {
		return nil, errorf(KindConflict, op, "settlement %s is already liquidated", id)
	}

	today := s.today()
	report, restored := s.release(op, settlement, members, today)

	step := ""
	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	if len(report.Installments) > 0 {
		if _, err := s.store.DeleteReceivables(ctx, storage.TitleFilter{
			SettlementID: id,
			Origin:       models.OriginInternalSettlement,
		}); err != nil {
			return nil, writeFailed(op, id, step, err)
		}
		step = StepDeleteInstallments
	}

	if len(restored) > 0 {
		if err := checkpoint(ctx, op, id, step); err != nil {
			return nil, err
		}
		if err := s.restoreOriginals(ctx, restored); err != nil {
			return nil, writeFailed(op, id, step, err)
		}
		step = StepRestoreOriginals
	}

	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	if err := s.store.DeleteSettlement(ctx, id); err != nil {
		return nil, writeFailed(op, id, step, err)
	}
	step = StepDeleteSettlement

	if err := checkpoint(ctx, op, id, step); err != nil {
		return nil, err
	}
	note := fmt.Sprintf("Settlement %s deleted: %d originals restored, %d installments removed",
		id, len(report.Restored), len(report.Installments))
	if err := s.store.AppendHistory(ctx, s.releaseHistory(settlement.Client, models.ActionAgreementDeleted, note, user, restoredTitles(restored), today)); err != nil {
		return nil, writeFailed(op, id, step, err)
	}

	s.audit(ctx, user, models.AuditSettlementDelete, settlement.Client, note, restoredTotal(restoredTitles(restored)))
	slog.Info("Settlement deleted",
		"settlement_id", id,
		"restored", len(report.Restored),
		"installments", len(report.Installments),
	)
	return report, nil
}

func (s *SettlementService) releaseHistory(client, action, note, user string, restored []*models.ReceivableTitle, today time.Time) *models.CollectionHistoryEntry {
	return s.history(client, action, note, user, nil, restoredTotal(restored), maxDaysOverdue(restored, today))
}

func restoredTotal(restored []*models.ReceivableTitle) decimal.Decimal {
	total := decimal.Zero
	for _, t := range restored {
		total = total.Add(t.Balance)
	}
	return total
}

// LiquidateRequest records the payment of one installment.
type LiquidateRequest struct {
	InstallmentID string

	// PaymentDate defaults to today.
	PaymentDate time.Time
	Method      string
	User        string
}

// LiquidationResult is the paid installment and whether its settlement can
// now be finalized.
type LiquidationResult struct {
	Installment *models.ReceivableTitle
	AllPaid     bool
}

// LiquidateInstallment marks an OPEN installment as PAID.
func (s *SettlementService) LiquidateInstallment(ctx context.Context, req LiquidateRequest) (_ *LiquidationResult, err error) {
	const op = opLiquidate
	defer s.observe(op, time.Now(), &err)

	slog.Info("Liquidate installment request received", "installment_id", req.InstallmentID, "method", req.Method)

	if req.InstallmentID == "" {
		return nil, errorf(KindValidation, op, "installment id is required")
	}
	release, err := s.guard.Acquire(op, titleKeys([]string{req.InstallmentID})...)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.store.ListReceivables(ctx, storage.TitleFilter{IDs: []string{req.InstallmentID}})
	if err != nil {
		return nil, storeError(op, err)
	}
	if len(rows) == 0 {
		return nil, errorf(KindNotFound, op, "title %s not found", req.InstallmentID)
	}
	inst, ok := models.AsInstallment(rows[0])
	if !ok {
		return nil, errorf(KindValidation, op, "title %s is not a settlement installment", req.InstallmentID)
	}
	releaseSettlement, err := s.guard.Acquire(op, settlementKey(inst.SettlementID))
	if err != nil {
		return nil, err
	}
	defer releaseSettlement()

	if inst.Status != models.StatusOpen {
		return nil, errorf(KindConflict, op, "installment %s is %s", inst.ID, inst.Status)
	}

	paidOn := models.Date(req.PaymentDate)
	if paidOn.IsZero() {
		paidOn = s.today()
	}
	method := models.NormalizeName(req.Method)
	zero := decimal.Zero
	paid := models.StatusPaid
	received := inst.FaceValue

	if err := checkpoint(ctx, op, inst.SettlementID, ""); err != nil {
		return nil, err
	}
	n, err := s.store.UpdateReceivables(ctx,
		storage.TitleFilter{IDs: []string{inst.ID}, Statuses: []models.TitleStatus{models.StatusOpen}},
		storage.TitlePatch{
			Balance:         &zero,
			Status:          &paid,
			ReceivedAmount:  &received,
			LiquidationDate: &paidOn,
			ReceiptMethod:   &method,
		})
	if err != nil {
		return nil, writeFailed(op, inst.SettlementID, "", err)
	}
	if n == 0 {
		return nil, errorf(KindConflict, op, "installment %s is no longer open", inst.ID)
	}

	out := inst.Clone()
	out.Balance = zero
	out.Status = paid
	out.ReceivedAmount = received
	out.LiquidationDate = &paidOn
	out.ReceiptMethod = method

	details := fmt.Sprintf("Installment %s of settlement %s paid on %s via %s",
		inst.ID, inst.SettlementID, models.FormatDate(paidOn), method)
	s.audit(ctx, req.User, models.AuditInstallmentLiquidated, inst.Client, details, received)

	result := &LiquidationResult{Installment: out}
	siblings, err := s.store.ListReceivables(ctx, storage.TitleFilter{
		SettlementID: inst.SettlementID,
		Origin:       models.OriginInternalSettlement,
	})
	if err != nil {
		slog.Warn("could not check remaining installments", "settlement_id", inst.SettlementID, "error", err)
		return result, nil
	}
	result.AllPaid = len(siblings) > 0
	for _, sib := range siblings {
		if sib.Status != models.StatusPaid {
			result.AllPaid = false
			break
		}
	}

	slog.Info("Installment liquidated",
		"installment_id", inst.ID,
		"settlement_id", inst.SettlementID,
		"amount", received.StringFixed(2),
		"all_paid", result.AllPaid,
	)
	return result, nil
}

// Get retrieves a settlement by ID.
func (s *SettlementService) Get(ctx context.Context, id string) (*models.Settlement, error) {
	if id == "" {
		return nil, errorf(KindValidation, opGetSettlement, "settlement id is required")
	}
	settlement, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, storeError(opGetSettlement, err)
	}
	return settlement, nil
}

// List retrieves settlements, optionally restricted to a client and statuses.
func (s *SettlementService) List(ctx context.Context, client string, statuses ...models.SettlementStatus) ([]*models.Settlement, error) {
	settlements, err := s.store.ListSettlements(ctx, storage.SettlementFilter{
		Client:   models.NormalizeName(client),
		Statuses: statuses,
	})
	if err != nil {
		return nil, storeError(opListSettlements, err)
	}
	return settlements, nil
}

// Schedule builds the document view of a settlement from its current titles.
func (s *SettlementService) Schedule(ctx context.Context, id string) (*models.SettlementSchedule, error) {
	settlement, members, err := s.load(ctx, opSchedule, id)
	if err != nil {
		return nil, err
	}

	schedule := &models.SettlementSchedule{Settlement: settlement}
	for _, o := range members.Originals {
		schedule.Originals = append(schedule.Originals, o.ReceivableTitle)
	}
	if len(members.Installments) == 0 {
		lines, err := calculator.BuildSchedule(settlement)
		if err != nil {
			return nil, newError(KindValidation, opSchedule, err)
		}
		schedule.Lines = lines
		return schedule, nil
	}

	insts := make([]*models.ReceivableTitle, len(members.Installments))
	for i, inst := range members.Installments {
		insts[i] = inst.ReceivableTitle
	}
	sort.Slice(insts, func(i, j int) bool {
		if !insts[i].DueDate.Equal(insts[j].DueDate) {
			return insts[i].DueDate.Before(insts[j].DueDate)
		}
		return insts[i].ID < insts[j].ID
	})
	for i, t := range insts {
		schedule.Lines = append(schedule.Lines, models.ScheduleLine{
			Number:  i + 1,
			ID:      t.ID,
			DueDate: t.DueDate,
			Amount:  t.FaceValue,
			Status:  t.Status,
		})
	}
	return schedule, nil
}

// ConsistencyReport lists disagreements between a settlement's id list and
// the state of its titles.
type ConsistencyReport struct {
	SettlementID string                  `json:"settlement_id"`
	Status       models.SettlementStatus `json:"status"`

	// MissingTitles are listed ids with no stored title.
	MissingTitles []string `json:"missing_titles,omitempty"`

	// Unflagged are listed originals not marked blocked by a settlement.
	Unflagged []string `json:"unflagged,omitempty"`

	// Unlisted are linked originals absent from the id list.
	Unlisted []string `json:"unlisted,omitempty"`

	// Unlocked are listed originals carrying a balance or a non-NEGOTIATED status.
	Unlocked []string `json:"unlocked,omitempty"`

	Consistent bool `json:"consistent"`
}

// CheckConsistency reports, without writing, where an ACTIVE settlement's
// membership record and its titles disagree. Non-active settlements are
// expected to have released their titles and report as consistent.
func (s *SettlementService) CheckConsistency(ctx context.Context, id string) (*ConsistencyReport, error) {
	settlement, members, err := s.load(ctx, opCheckConsistency, id)
	if err != nil {
		return nil, err
	}
	report := &ConsistencyReport{SettlementID: id, Status: settlement.Status}
	if settlement.Status != models.SettlementActive {
		report.Consistent = true
		return report, nil
	}

	present := make(map[string]bool, len(members.Originals))
	for _, o := range members.Originals {
		present[o.ID] = true
		switch {
		case o.Listed && !o.Flagged:
			report.Unflagged = append(report.Unflagged, o.ID)
		case !o.Listed:
			report.Unlisted = append(report.Unlisted, o.ID)
		}
		if o.Listed && (!o.Balance.IsZero() || o.Status != models.StatusNegotiated) {
			report.Unlocked = append(report.Unlocked, o.ID)
		}
	}
	for _, tid := range settlement.NegotiatedTitleIDs {
		if !present[tid] {
			report.MissingTitles = append(report.MissingTitles, tid)
		}
	}
	report.Consistent = len(report.MissingTitles) == 0 && len(report.Unflagged) == 0 &&
		len(report.Unlisted) == 0 && len(report.Unlocked) == 0
	return report, nil
}
