package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage/sqlstore"
)

// testStart is noon on the day every service test runs.
var testStart = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

// tickingClock advances one second per reading so timestamps are ordered.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// faultyStore fails the named store methods with the configured error.
type faultyStore struct {
	storage.Store

	mu        sync.Mutex
	fail      map[string]error
	afterList func(storage.TitleFilter) bool
}

// onList runs fn after each successful ListReceivables until fn returns true.
func (f *faultyStore) onList(fn func(storage.TitleFilter) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterList = fn
}

func (f *faultyStore) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

func (f *faultyStore) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *faultyStore) ListReceivables(ctx context.Context, filter storage.TitleFilter) ([]*models.ReceivableTitle, error) {
	if err := f.hit("ListReceivables"); err != nil {
		return nil, err
	}
	rows, err := f.Store.ListReceivables(ctx, filter)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	fn := f.afterList
	f.afterList = nil
	f.mu.Unlock()
	if fn != nil && !fn(filter) {
		f.onList(fn)
	}
	return rows, nil
}

func (f *faultyStore) DeleteReceivables(ctx context.Context, filter storage.TitleFilter) (int64, error) {
	if err := f.hit("DeleteReceivables"); err != nil {
		return 0, err
	}
	return f.Store.DeleteReceivables(ctx, filter)
}

func (f *faultyStore) DeleteSettlement(ctx context.Context, id string) error {
	if err := f.hit("DeleteSettlement"); err != nil {
		return err
	}
	return f.Store.DeleteSettlement(ctx, id)
}

func (f *faultyStore) InsertSettlement(ctx context.Context, s *models.Settlement) error {
	if err := f.hit("InsertSettlement"); err != nil {
		return err
	}
	return f.Store.InsertSettlement(ctx, s)
}

func (f *faultyStore) UpdateReceivables(ctx context.Context, filter storage.TitleFilter, patch storage.TitlePatch) (int64, error) {
	if err := f.hit("UpdateReceivables"); err != nil {
		return 0, err
	}
	return f.Store.UpdateReceivables(ctx, filter, patch)
}

func (f *faultyStore) UpsertReceivables(ctx context.Context, rows []*models.ReceivableTitle) error {
	if err := f.hit("UpsertReceivables"); err != nil {
		return err
	}
	return f.Store.UpsertReceivables(ctx, rows)
}

func (f *faultyStore) UpsertPayables(ctx context.Context, rows []*models.PayableTitle) error {
	if err := f.hit("UpsertPayables"); err != nil {
		return err
	}
	return f.Store.UpsertPayables(ctx, rows)
}

func (f *faultyStore) UpdateSettlement(ctx context.Context, id string, patch storage.SettlementPatch) error {
	if err := f.hit("UpdateSettlement"); err != nil {
		return err
	}
	return f.Store.UpdateSettlement(ctx, id, patch)
}

func (f *faultyStore) AppendHistory(ctx context.Context, e *models.CollectionHistoryEntry) error {
	if err := f.hit("AppendHistory"); err != nil {
		return err
	}
	return f.Store.AppendHistory(ctx, e)
}

func (f *faultyStore) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	if err := f.hit("AppendAudit"); err != nil {
		return err
	}
	return f.Store.AppendAudit(ctx, e)
}

type fixture struct {
	store       *faultyStore
	guard       *Guard
	settlements *SettlementService
	notary      *NotaryService
	collection  *CollectionService
	imports     *ImportService
	today       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	// Create temp database
	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	inner, err := sqlstore.New("sqlite", tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		inner.Close()
		os.Remove(tmpFile.Name())
	})

	store := &faultyStore{Store: inner, fail: make(map[string]error)}
	guard := NewGuard()
	opts := []Option{WithClock(&tickingClock{now: testStart}), WithGuard(guard)}
	return &fixture{
		store:       store,
		guard:       guard,
		settlements: NewSettlementService(store, opts...),
		notary:      NewNotaryService(store, opts...),
		collection:  NewCollectionService(store, opts...),
		imports:     NewImportService(store, opts...),
		today:       models.Date(testStart),
	}
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// openTitle builds an imported, collectable title with balance equal to face value.
func openTitle(id, client, amount, due string) *models.ReceivableTitle {
	a := dec(amount)
	return &models.ReceivableTitle{
		ID:              id,
		Client:          client,
		IssueDate:       day("2023-11-01"),
		DueDate:         day(due),
		FaceValue:       a,
		Balance:         a,
		Status:          models.OpenStatusFor(day(due), testStart),
		CollectionState: models.CollectionCollectable,
		Origin:          models.OriginExternalImport,
		ReceivedAmount:  decimal.Zero,
	}
}

func (f *fixture) seed(t *testing.T, titles ...*models.ReceivableTitle) {
	t.Helper()
	if err := f.store.InsertReceivables(context.Background(), titles); err != nil {
		t.Fatalf("failed to seed titles: %v", err)
	}
}

func (f *fixture) title(t *testing.T, id string) *models.ReceivableTitle {
	t.Helper()
	rows, err := f.store.ListReceivables(context.Background(), storage.TitleFilter{IDs: []string{id}})
	if err != nil {
		t.Fatalf("failed to load title %s: %v", id, err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected title %s to exist, found %d rows", id, len(rows))
	}
	return rows[0]
}

func (f *fixture) installments(t *testing.T, settlementID string) []*models.ReceivableTitle {
	t.Helper()
	rows, err := f.store.ListReceivables(context.Background(), storage.TitleFilter{
		SettlementID: settlementID,
		Origin:       models.OriginInternalSettlement,
	})
	if err != nil {
		t.Fatalf("failed to load installments: %v", err)
	}
	return rows
}

func (f *fixture) historyActions(t *testing.T, client string) []string {
	t.Helper()
	entries, err := f.store.ListHistory(context.Background(), client)
	if err != nil {
		t.Fatalf("failed to load history: %v", err)
	}
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.ActionTaken
	}
	return actions
}

// scenarioA negotiates t1 (100.00) and t2 (50.00) of ACME into three monthly
// installments of 40.00 starting 2024-01-10.
func (f *fixture) scenarioA(t *testing.T) *models.Settlement {
	t.Helper()
	f.seed(t,
		openTitle("t1", "ACME", "100.00", "2023-12-01"),
		openTitle("t2", "ACME", "50.00", "2023-12-15"),
	)
	s, err := f.settlements.Create(context.Background(), CreateSettlementRequest{
		Client:               "Acme",
		TitleIDs:             []string{"t1", "t2"},
		AgreedAmount:         dec("120"),
		InstallmentCount:     3,
		Frequency:            models.FrequencyMonthly,
		FirstInstallmentDate: day("2024-01-10"),
		User:                 "alice",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return s
}
