package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const (
	opSendToNotary     = "notary.send"
	opRemoveFromNotary = "notary.remove"
)

// NotaryService moves titles into and out of protest. It only ever writes
// collectionState; balance and status are left alone, so protest composes
// with the settlement lifecycle.
type NotaryService struct {
	base
}

// NewNotaryService creates a NotaryService with the given storage backend.
func NewNotaryService(store storage.Store, opts ...Option) *NotaryService {
	return &NotaryService{base: newBase(store, opts)}
}

// NotaryResult summarizes one notary call per client.
type NotaryResult struct {
	TitleIDs []string
	Clients  []ClientExposure
}

// ClientExposure is the count and value of one client's titles in a call.
type ClientExposure struct {
	Client string
	Count  int
	Total  decimal.Decimal
}

// SendToNotary protests the titles. A settlement-blocked title becomes
// BLOCKED_BY_SETTLEMENT_AT_NOTARY, any other becomes AT_NOTARY.
func (s *NotaryService) SendToNotary(ctx context.Context, titleIDs []string, user string) (*NotaryResult, error) {
	return s.move(ctx, opSendToNotary, titleIDs, user)
}

// RemoveFromNotary withdraws the protest, reverting to COLLECTABLE or
// BLOCKED_BY_SETTLEMENT.
func (s *NotaryService) RemoveFromNotary(ctx context.Context, titleIDs []string, user string) (*NotaryResult, error) {
	return s.move(ctx, opRemoveFromNotary, titleIDs, user)
}

func (s *NotaryService) move(ctx context.Context, op string, titleIDs []string, user string) (_ *NotaryResult, err error) {
	defer s.observe(op, time.Now(), &err)

	slog.Info("Notary request received", "op", op, "titles_count", len(titleIDs))

	ids := dedupe(titleIDs)
	if len(ids) == 0 {
		return nil, errorf(KindValidation, op, "no titles selected")
	}
	release, err := s.guard.Acquire(op, titleKeys(ids)...)
	if err != nil {
		return nil, err
	}
	defer release()

	titles, err := s.store.ListReceivables(ctx, storage.TitleFilter{IDs: ids})
	if err != nil {
		return nil, storeError(op, err)
	}
	found := make(map[string]*models.ReceivableTitle, len(titles))
	for _, t := range titles {
		found[t.ID] = t
	}

	// Validate everything before the first write.
	targets := make(map[models.CollectionState][]string)
	ordered := make([]*models.ReceivableTitle, 0, len(ids))
	for _, id := range ids {
		t, ok := found[id]
		if !ok {
			return nil, errorf(KindNotFound, op, "title %s not found", id)
		}
		next, err := notaryTransition(op, t)
		if err != nil {
			return nil, err
		}
		targets[next] = append(targets[next], id)
		ordered = append(ordered, t)
	}

	states := make([]models.CollectionState, 0, len(targets))
	for state := range targets {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })

	step := ""
	for _, state := range states {
		if err := checkpoint(ctx, op, "", step); err != nil {
			return nil, err
		}
		state := state
		group := targets[state]
		n, err := s.store.UpdateReceivables(ctx, storage.TitleFilter{IDs: group}, storage.TitlePatch{CollectionState: &state})
		if err == nil && int(n) != len(group) {
			err = fmt.Errorf("moved %d of %d titles to %s", n, len(group), state)
		}
		if err != nil {
			return nil, writeFailed(op, "", step, err)
		}
		step = string(state)
	}

	result := &NotaryResult{TitleIDs: ids}
	action, auditAction, verb := models.ActionNotary, models.AuditNotarySend, "sent to notary"
	if op == opRemoveFromNotary {
		action, auditAction, verb = models.ActionNotaryRemoval, models.AuditNotaryRemove, "removed from notary"
	}

	today := s.today()
	byClient := make(map[string][]*models.ReceivableTitle)
	var clients []string
	for _, t := range ordered {
		if _, ok := byClient[t.Client]; !ok {
			clients = append(clients, t.Client)
		}
		byClient[t.Client] = append(byClient[t.Client], t)
	}

	grand := decimal.Zero
	for _, client := range clients {
		group := byClient[client]
		total := decimal.Zero
		for _, t := range group {
			total = total.Add(t.Exposure())
		}
		grand = grand.Add(total)
		result.Clients = append(result.Clients, ClientExposure{Client: client, Count: len(group), Total: total})

		if err := checkpoint(ctx, op, "", step); err != nil {
			return nil, err
		}
		note := fmt.Sprintf("%d titles %s, total %s", len(group), verb, total.StringFixed(2))
		entry := s.history(client, action, note, user, nil, total, maxDaysOverdue(group, today))
		if err := s.store.AppendHistory(ctx, entry); err != nil {
			return nil, writeFailed(op, "", step, err)
		}
		step = "history " + client
	}

	details := fmt.Sprintf("%d titles %s: %s", len(ids), verb, strings.Join(ids, ", "))
	s.audit(ctx, user, auditAction, strings.Join(clients, ", "), details, grand)
	slog.Info("Notary request completed", "op", op, "titles", len(ids), "clients", len(clients))
	return result, nil
}

// notaryTransition returns the collection state a title moves to, or the
// reason it cannot move.
func notaryTransition(op string, t *models.ReceivableTitle) (models.CollectionState, error) {
	if op == opRemoveFromNotary {
		switch t.CollectionState {
		case models.CollectionAtNotary:
			return models.CollectionCollectable, nil
		case models.CollectionBlockedBySettlementAtNotary:
			return models.CollectionBlockedBySettlement, nil
		}
		return "", errorf(KindConflict, op, "title %s is not at notary", t.ID)
	}

	switch {
	case t.CollectionState.AtNotary():
		return "", errorf(KindConflict, op, "title %s is already at notary", t.ID)
	case t.CollectionState == models.CollectionNotCollectable, t.Role() == models.RoleInstallment:
		return "", errorf(KindConflict, op, "title %s is not eligible for protest", t.ID)
	case t.CollectionState.BlockedBySettlement():
		return models.CollectionBlockedBySettlementAtNotary, nil
	case !models.Outstanding(t.Balance):
		return "", errorf(KindConflict, op, "title %s has nothing outstanding to protest", t.ID)
	}
	return models.CollectionAtNotary, nil
}
