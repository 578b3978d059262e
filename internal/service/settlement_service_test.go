package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

func TestCreateSettlement(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)

	if s.Client != "ACME" {
		t.Errorf("Client = %q, want ACME", s.Client)
	}
	if s.Status != models.SettlementActive {
		t.Errorf("Status = %s, want ACTIVE", s.Status)
	}
	if !s.OriginalAmount.Equal(dec("150")) {
		t.Errorf("OriginalAmount = %s, want 150", s.OriginalAmount)
	}

	insts := f.installments(t, s.ID)
	if len(insts) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(insts))
	}
	wantDue := []string{"2024-01-10", "2024-02-10", "2024-03-10"}
	for i, inst := range insts {
		if !inst.Balance.Equal(dec("40")) || !inst.FaceValue.Equal(dec("40")) {
			t.Errorf("installment %d amount = %s/%s, want 40.00", i, inst.Balance, inst.FaceValue)
		}
		if models.FormatDate(inst.DueDate) != wantDue[i] {
			t.Errorf("installment %d due = %s, want %s", i, models.FormatDate(inst.DueDate), wantDue[i])
		}
		if inst.Status != models.StatusOpen || inst.CollectionState != models.CollectionNotCollectable {
			t.Errorf("installment %d state = %s/%s", i, inst.Status, inst.CollectionState)
		}
		if inst.Category != models.SettlementCategory || inst.Role() != models.RoleInstallment {
			t.Errorf("installment %d category/role = %s/%s", i, inst.Category, inst.Role())
		}
	}

	for _, id := range []string{"t1", "t2"} {
		o := f.title(t, id)
		if !o.Balance.IsZero() || o.Status != models.StatusNegotiated {
			t.Errorf("%s = %s/%s, want 0/NEGOTIATED", id, o.Balance, o.Status)
		}
		if o.CollectionState != models.CollectionBlockedBySettlement || o.SettlementID != s.ID {
			t.Errorf("%s not locked: %s settlement=%q", id, o.CollectionState, o.SettlementID)
		}
		if o.Role() != models.RoleLockedOriginal {
			t.Errorf("%s role = %s, want locked_original", id, o.Role())
		}
	}

	if got := f.historyActions(t, "ACME"); !slices.Equal(got, []string{models.ActionAgreement}) {
		t.Errorf("history = %v, want [AGREEMENT]", got)
	}
	audit, err := f.store.ListAudit(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(audit) != 1 || audit[0].Action != models.AuditSettlementCreate || audit[0].User != "alice" {
		t.Errorf("unexpected audit log %+v", audit)
	}
}

func TestCreateSettlementAbsorbsRemainder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, openTitle("t1", "ACME", "150.00", "2023-12-01"))

	s, err := f.settlements.Create(context.Background(), CreateSettlementRequest{
		Client:               "ACME",
		TitleIDs:             []string{"t1"},
		AgreedAmount:         dec("100"),
		InstallmentCount:     3,
		Frequency:            models.FrequencyWeekly,
		FirstInstallmentDate: day("2024-01-31"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	insts := f.installments(t, s.ID)
	want := []string{"33.33", "33.33", "33.34"}
	total := dec("0")
	for i, inst := range insts {
		if !inst.FaceValue.Equal(dec(want[i])) {
			t.Errorf("installment %d = %s, want %s", i, inst.FaceValue, want[i])
		}
		total = total.Add(inst.FaceValue)
	}
	if !total.Equal(s.AgreedAmount) {
		t.Errorf("installments sum to %s, want %s", total, s.AgreedAmount)
	}
	if got := models.FormatDate(insts[2].DueDate); got != "2024-02-14" {
		t.Errorf("third weekly due = %s, want 2024-02-14", got)
	}
}

func TestCreateSettlementRejections(t *testing.T) {
	valid := func() CreateSettlementRequest {
		return CreateSettlementRequest{
			Client:               "ACME",
			TitleIDs:             []string{"t1"},
			AgreedAmount:         dec("90"),
			InstallmentCount:     2,
			Frequency:            models.FrequencyBiweekly,
			FirstInstallmentDate: day("2024-02-01"),
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateSettlementRequest)
		check  func(error) bool
	}{
		{"no titles", func(r *CreateSettlementRequest) { r.TitleIDs = nil }, IsValidation},
		{"duplicate titles", func(r *CreateSettlementRequest) { r.TitleIDs = []string{"t1", "t1"} }, IsValidation},
		{"zero installments", func(r *CreateSettlementRequest) { r.InstallmentCount = 0 }, IsValidation},
		{"too many installments", func(r *CreateSettlementRequest) {
			r.AgreedAmount = dec("1000000000000")
			r.InstallmentCount = 2000000000
		}, IsValidation},
		{"non-positive amount", func(r *CreateSettlementRequest) { r.AgreedAmount = dec("0") }, IsValidation},
		{"unknown frequency", func(r *CreateSettlementRequest) { r.Frequency = "DAILY" }, IsValidation},
		{"missing first date", func(r *CreateSettlementRequest) { r.FirstInstallmentDate = day("0001-01-01") }, IsValidation},
		{"other client", func(r *CreateSettlementRequest) { r.Client = "BETA" }, IsValidation},
		{"unknown title", func(r *CreateSettlementRequest) { r.TitleIDs = []string{"t1", "nope"} }, IsNotFound},
		{"paid title", func(r *CreateSettlementRequest) { r.TitleIDs = []string{"paid"} }, IsValidation},
		{"linked title", func(r *CreateSettlementRequest) { r.TitleIDs = []string{"linked"} }, IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			paid := openTitle("paid", "ACME", "10", "2023-12-01")
			paid.Balance = dec("0")
			paid.Status = models.StatusPaid
			linked := openTitle("linked", "ACME", "10", "2023-12-01")
			linked.SettlementID = "other"
			f.seed(t, openTitle("t1", "ACME", "100", "2023-12-01"), paid, linked)

			req := valid()
			tt.mutate(&req)
			_, err := f.settlements.Create(context.Background(), req)
			if !tt.check(err) {
				t.Fatalf("unexpected error kind: %v", err)
			}

			settlements, err := f.store.ListSettlements(context.Background(), storage.SettlementFilter{})
			if err != nil {
				t.Fatalf("ListSettlements failed: %v", err)
			}
			if len(settlements) != 0 {
				t.Errorf("rejected Create wrote %d settlements", len(settlements))
			}
			if got := f.title(t, "t1"); got.Status != models.StatusOverdue || !got.Balance.Equal(dec("100")) {
				t.Errorf("rejected Create touched t1: %s/%s", got.Status, got.Balance)
			}
		})
	}
}

func TestCreateSettlementReusedID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, openTitle("t1", "ACME", "100", "2023-12-01"), openTitle("t2", "ACME", "100", "2023-12-01"))

	req := CreateSettlementRequest{
		ID:                   "S-1",
		Client:               "ACME",
		TitleIDs:             []string{"t1"},
		AgreedAmount:         dec("90"),
		InstallmentCount:     1,
		Frequency:            models.FrequencyMonthly,
		FirstInstallmentDate: day("2024-02-01"),
	}
	if _, err := f.settlements.Create(context.Background(), req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	req.TitleIDs = []string{"t2"}
	if _, err := f.settlements.Create(context.Background(), req); !IsConflict(err) {
		t.Errorf("expected conflict for reused id, got %v", err)
	}
}

func TestFinalizeBeforeAllPaid(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)

	insts := f.installments(t, s.ID)
	if _, err := f.settlements.LiquidateInstallment(context.Background(), LiquidateRequest{InstallmentID: insts[0].ID, Method: "pix"}); err != nil {
		t.Fatalf("LiquidateInstallment failed: %v", err)
	}

	_, err := f.settlements.Finalize(context.Background(), s.ID, "alice")
	if !IsPreconditionNotMet(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	got, err := f.settlements.Get(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.SettlementActive {
		t.Errorf("settlement status = %s, want ACTIVE", got.Status)
	}
	if o := f.title(t, "t1"); o.Status != models.StatusNegotiated || o.LiquidationDate != nil {
		t.Errorf("t1 changed by refused Finalize: %s %v", o.Status, o.LiquidationDate)
	}
}

func TestLiquidateAllThenFinalize(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	insts := f.installments(t, s.ID)
	for i, inst := range insts {
		res, err := f.settlements.LiquidateInstallment(ctx, LiquidateRequest{
			InstallmentID: inst.ID,
			PaymentDate:   inst.DueDate,
			Method:        "boleto",
			User:          "bob",
		})
		if err != nil {
			t.Fatalf("LiquidateInstallment %s failed: %v", inst.ID, err)
		}
		if want := i == len(insts)-1; res.AllPaid != want {
			t.Errorf("after %d payments AllPaid = %v, want %v", i+1, res.AllPaid, want)
		}
		paid := f.title(t, inst.ID)
		if paid.Status != models.StatusPaid || !paid.Balance.IsZero() || !paid.ReceivedAmount.Equal(dec("40")) {
			t.Errorf("installment %s = %s/%s received %s", inst.ID, paid.Status, paid.Balance, paid.ReceivedAmount)
		}
		if paid.ReceiptMethod != "BOLETO" || paid.LiquidationDate == nil || !paid.LiquidationDate.Equal(inst.DueDate) {
			t.Errorf("installment %s receipt = %q on %v", inst.ID, paid.ReceiptMethod, paid.LiquidationDate)
		}
	}

	finalized, err := f.settlements.Finalize(ctx, s.ID, "alice")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if finalized.Status != models.SettlementLiquidated {
		t.Errorf("returned status = %s, want LIQUIDATED", finalized.Status)
	}
	stored, err := f.settlements.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != models.SettlementLiquidated {
		t.Errorf("stored status = %s, want LIQUIDATED", stored.Status)
	}
	for _, id := range []string{"t1", "t2"} {
		o := f.title(t, id)
		if o.Status != models.StatusLiquidated || !o.Balance.IsZero() {
			t.Errorf("%s = %s/%s, want LIQUIDATED/0", id, o.Status, o.Balance)
		}
		if o.LiquidationDate == nil || !o.LiquidationDate.Equal(f.today) || o.CollectionState != models.CollectionNotCollectable {
			t.Errorf("%s liquidation = %v %s", id, o.LiquidationDate, o.CollectionState)
		}
	}
	if got := f.historyActions(t, "ACME"); !slices.Equal(got, []string{models.ActionAgreement, models.ActionLiquidationTotal}) {
		t.Errorf("history = %v", got)
	}

	if _, err := f.settlements.Finalize(ctx, s.ID, "alice"); !IsConflict(err) {
		t.Errorf("expected conflict finalizing twice, got %v", err)
	}
}

func TestLiquidateInstallmentRejections(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()
	first := s.InstallmentID(1)

	if _, err := f.settlements.LiquidateInstallment(ctx, LiquidateRequest{InstallmentID: "missing"}); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := f.settlements.LiquidateInstallment(ctx, LiquidateRequest{InstallmentID: "t1"}); !IsValidation(err) {
		t.Errorf("expected validation error for an original, got %v", err)
	}
	if _, err := f.settlements.LiquidateInstallment(ctx, LiquidateRequest{InstallmentID: first}); err != nil {
		t.Fatalf("LiquidateInstallment failed: %v", err)
	}
	if _, err := f.settlements.LiquidateInstallment(ctx, LiquidateRequest{InstallmentID: first}); !IsConflict(err) {
		t.Errorf("expected conflict paying twice, got %v", err)
	}
	if paid := f.title(t, first); !paid.LiquidationDate.Equal(f.today) {
		t.Errorf("default payment date = %v, want today", paid.LiquidationDate)
	}
}

func TestCreateThenCancelRestoresOriginals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t,
		openTitle("t1", "ACME", "100.00", "2023-12-01"),
		openTitle("t2", "ACME", "50.00", "2024-02-01"),
	)
	before := map[string]*models.ReceivableTitle{"t1": f.title(t, "t1"), "t2": f.title(t, "t2")}

	s, err := f.settlements.Create(ctx, CreateSettlementRequest{
		Client:               "ACME",
		TitleIDs:             []string{"t1", "t2"},
		AgreedAmount:         dec("140"),
		InstallmentCount:     4,
		Frequency:            models.FrequencyBiweekly,
		FirstInstallmentDate: day("2024-01-20"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	report, err := f.settlements.Cancel(ctx, s.ID, "alice")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(report.Restored) != 2 || len(report.Installments) != 4 || len(report.Disagreements) != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	for id, want := range before {
		got := f.title(t, id)
		if !got.Balance.Equal(want.Balance) || got.Status != want.Status || got.CollectionState != want.CollectionState {
			t.Errorf("%s = %s/%s/%s, want %s/%s/%s", id,
				got.Balance, got.Status, got.CollectionState,
				want.Balance, want.Status, want.CollectionState)
		}
		if got.SettlementID != "" {
			t.Errorf("%s still linked to %q", id, got.SettlementID)
		}
	}
	for _, inst := range f.installments(t, s.ID) {
		if inst.Status == models.StatusOpen {
			t.Errorf("installment %s left OPEN", inst.ID)
		}
		if inst.Status != models.StatusCancelled || !inst.Balance.IsZero() {
			t.Errorf("installment %s = %s/%s", inst.ID, inst.Status, inst.Balance)
		}
	}

	stored, err := f.settlements.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != models.SettlementCancelled {
		t.Errorf("settlement status = %s, want CANCELLED", stored.Status)
	}
	if _, err := f.settlements.Cancel(ctx, s.ID, "alice"); !IsConflict(err) {
		t.Errorf("expected conflict cancelling twice, got %v", err)
	}
}

func TestDeleteSettlement(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	if _, err := f.settlements.Delete(ctx, s.ID, false, "alice"); !IsValidation(err) {
		t.Fatalf("expected validation error without confirmation, got %v", err)
	}
	if len(f.installments(t, s.ID)) != 3 {
		t.Fatal("unconfirmed Delete removed installments")
	}

	report, err := f.settlements.Delete(ctx, s.ID, true, "alice")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(report.Restored) != 2 || len(report.Installments) != 3 {
		t.Errorf("unexpected report %+v", report)
	}
	if insts := f.installments(t, s.ID); len(insts) != 0 {
		t.Errorf("expected installments removed, found %d", len(insts))
	}
	if _, err := f.settlements.Get(ctx, s.ID); !IsNotFound(err) {
		t.Errorf("expected settlement removed, got %v", err)
	}
	t1 := f.title(t, "t1")
	if !t1.Balance.Equal(dec("100")) || t1.Status != models.StatusOverdue || t1.CollectionState != models.CollectionCollectable {
		t.Errorf("t1 not restored: %s/%s/%s", t1.Balance, t1.Status, t1.CollectionState)
	}
	if got := f.historyActions(t, "ACME"); !slices.Equal(got, []string{models.ActionAgreement, models.ActionAgreementDeleted}) {
		t.Errorf("history = %v", got)
	}
}

func TestCreatePartialApplyAndRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, openTitle("t1", "ACME", "100", "2023-12-01"))

	boom := errors.New("connection reset")
	f.store.failOn("UpsertReceivables", boom)
	_, err := f.settlements.Create(ctx, CreateSettlementRequest{
		ID:                   "S-9",
		Client:               "ACME",
		TitleIDs:             []string{"t1"},
		AgreedAmount:         dec("80"),
		InstallmentCount:     2,
		Frequency:            models.FrequencyMonthly,
		FirstInstallmentDate: day("2024-02-01"),
	})

	var partial *PartialApplyError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialApplyError, got %v", err)
	}
	if partial.SettlementID != "S-9" || partial.Step != StepLockOriginals || !errors.Is(err, boom) {
		t.Errorf("unexpected partial error %+v", partial)
	}
	if o := f.title(t, "t1"); o.Status != models.StatusNegotiated {
		t.Fatalf("expected t1 locked by the partial Create, got %s", o.Status)
	}

	f.store.failOn("UpsertReceivables", nil)
	report, err := f.settlements.Cancel(ctx, "S-9", "repair")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(report.Installments) != 0 || !slices.Equal(report.Restored, []string{"t1"}) {
		t.Errorf("unexpected repair report %+v", report)
	}
	if o := f.title(t, "t1"); !o.Balance.Equal(dec("100")) || o.Status != models.StatusOverdue || o.SettlementID != "" {
		t.Errorf("t1 not restored: %s/%s %q", o.Balance, o.Status, o.SettlementID)
	}
}

func TestCreateHistoryFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	f.seed(t, openTitle("t1", "ACME", "100", "2023-12-01"))
	f.store.failOn("AppendHistory", errors.New("disk full"))

	_, err := f.settlements.Create(context.Background(), CreateSettlementRequest{
		Client:               "ACME",
		TitleIDs:             []string{"t1"},
		AgreedAmount:         dec("80"),
		InstallmentCount:     2,
		Frequency:            models.FrequencyMonthly,
		FirstInstallmentDate: day("2024-02-01"),
	})
	var partial *PartialApplyError
	if !errors.As(err, &partial) || partial.Step != StepInstallments {
		t.Fatalf("expected partial apply after installments, got %v", err)
	}
}

func TestCreateStoreFailureBeforeFirstWrite(t *testing.T) {
	f := newFixture(t)
	f.seed(t, openTitle("t1", "ACME", "100", "2023-12-01"))
	f.store.failOn("InsertSettlement", errors.New("timeout"))

	_, err := f.settlements.Create(context.Background(), CreateSettlementRequest{
		Client:               "ACME",
		TitleIDs:             []string{"t1"},
		AgreedAmount:         dec("80"),
		InstallmentCount:     2,
		Frequency:            models.FrequencyMonthly,
		FirstInstallmentDate: day("2024-02-01"),
	})
	if !IsStore(err) || IsPartialApply(err) {
		t.Fatalf("expected clean store error, got %v", err)
	}
	if o := f.title(t, "t1"); o.Status != models.StatusOverdue {
		t.Errorf("t1 changed: %s", o.Status)
	}
}

func TestCreateCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.seed(t, openTitle("t1", "ACME", "100", "2023-12-01"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.settlements.Create(ctx, CreateSettlementRequest{
		Client:               "ACME",
		TitleIDs:             []string{"t1"},
		AgreedAmount:         dec("80"),
		InstallmentCount:     2,
		Frequency:            models.FrequencyMonthly,
		FirstInstallmentDate: day("2024-02-01"),
	})
	if err == nil || IsPartialApply(err) {
		t.Fatalf("expected clean cancellation, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if o := f.title(t, "t1"); o.Status != models.StatusOverdue {
		t.Errorf("t1 changed: %s", o.Status)
	}
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.store.failOn("AppendAudit", errors.New("audit sink down"))
	s := f.scenarioA(t)
	if s.Status != models.SettlementActive {
		t.Errorf("expected Create to succeed, got status %s", s.Status)
	}
}

func TestSettlementGuardRefusesConcurrentOperation(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)

	release, err := f.guard.Acquire("test", settlementKey(s.ID))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	if _, err := f.settlements.Cancel(context.Background(), s.ID, "alice"); !IsConflict(err) {
		t.Errorf("expected conflict while settlement busy, got %v", err)
	}
	if _, err := f.settlements.LiquidateInstallment(context.Background(), LiquidateRequest{InstallmentID: s.InstallmentID(1)}); !IsConflict(err) {
		t.Errorf("expected conflict liquidating while settlement busy, got %v", err)
	}
	if o := f.title(t, "t1"); o.Status != models.StatusNegotiated {
		t.Errorf("refused Cancel changed t1: %s", o.Status)
	}
}

func TestStaleMembershipIsReportedAndRepaired(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	// t1 loses its flag; t3 is held by the settlement without being listed.
	collectable := models.CollectionCollectable
	if _, err := f.store.UpdateReceivables(ctx, storage.TitleFilter{IDs: []string{"t1"}}, storage.TitlePatch{CollectionState: &collectable}); err != nil {
		t.Fatalf("UpdateReceivables failed: %v", err)
	}
	t3 := openTitle("t3", "ACME", "30", "2023-12-20")
	t3.Balance = dec("0")
	t3.Status = models.StatusNegotiated
	t3.CollectionState = models.CollectionBlockedBySettlement
	t3.SettlementID = s.ID
	f.seed(t, t3)

	check, err := f.settlements.CheckConsistency(ctx, s.ID)
	if err != nil {
		t.Fatalf("CheckConsistency failed: %v", err)
	}
	if check.Consistent || !slices.Equal(check.Unflagged, []string{"t1"}) || !slices.Equal(check.Unlisted, []string{"t3"}) {
		t.Errorf("unexpected consistency report %+v", check)
	}

	report, err := f.settlements.Cancel(ctx, s.ID, "alice")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	slices.Sort(report.Restored)
	slices.Sort(report.Disagreements)
	if !slices.Equal(report.Restored, []string{"t1", "t2", "t3"}) {
		t.Errorf("Restored = %v", report.Restored)
	}
	if !slices.Equal(report.Disagreements, []string{"t1", "t3"}) {
		t.Errorf("Disagreements = %v", report.Disagreements)
	}
	if o := f.title(t, "t3"); !o.Balance.Equal(dec("30")) || o.Status != models.StatusOverdue {
		t.Errorf("t3 not restored: %s/%s", o.Balance, o.Status)
	}
}

func TestScheduleAndList(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	schedule, err := f.settlements.Schedule(ctx, s.ID)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(schedule.Originals) != 2 || len(schedule.Lines) != 3 {
		t.Fatalf("unexpected schedule %+v", schedule)
	}
	if schedule.Lines[2].Number != 3 || !schedule.Lines[2].Amount.Equal(dec("40")) {
		t.Errorf("unexpected last line %+v", schedule.Lines[2])
	}

	active, err := f.settlements.List(ctx, "acme", models.SettlementActive)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != s.ID {
		t.Errorf("unexpected list %+v", active)
	}
	if _, err := f.settlements.Schedule(ctx, "missing"); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReleaseKeepsProtestMadeWhileLoading(t *testing.T) {
	tests := []struct {
		name    string
		release func(f *fixture, id string) (*ReleaseReport, error)
	}{
		{"cancel", func(f *fixture, id string) (*ReleaseReport, error) {
			return f.settlements.Cancel(context.Background(), id, "alice")
		}},
		{"delete", func(f *fixture, id string) (*ReleaseReport, error) {
			return f.settlements.Delete(context.Background(), id, true, "alice")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.scenarioA(t)

			// Protest t1 right after the members are first listed, before
			// their keys are held.
			var sendErr error
			f.store.onList(func(filter storage.TitleFilter) bool {
				if filter.SettlementID != s.ID {
					return false
				}
				_, sendErr = f.notary.SendToNotary(context.Background(), []string{"t1"}, "bob")
				return true
			})

			report, err := tt.release(f, s.ID)
			if sendErr != nil {
				t.Fatalf("SendToNotary failed: %v", sendErr)
			}
			if err != nil {
				t.Fatalf("release failed: %v", err)
			}
			slices.Sort(report.Restored)
			if !slices.Equal(report.Restored, []string{"t1", "t2"}) {
				t.Errorf("Restored = %v", report.Restored)
			}
			t1 := f.title(t, "t1")
			if t1.CollectionState != models.CollectionAtNotary {
				t.Errorf("t1 state = %s, want AT_NOTARY", t1.CollectionState)
			}
			if !t1.Balance.Equal(dec("100")) || t1.SettlementID != "" {
				t.Errorf("t1 = %s %q, want 100 unlinked", t1.Balance, t1.SettlementID)
			}
			if t2 := f.title(t, "t2"); t2.CollectionState != models.CollectionCollectable {
				t.Errorf("t2 state = %s, want COLLECTABLE", t2.CollectionState)
			}
		})
	}
}

func TestCancelPartialApplyAndRerun(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	boom := errors.New("connection reset")
	f.store.failOn("UpdateSettlement", boom)
	_, err := f.settlements.Cancel(ctx, s.ID, "alice")

	var partial *PartialApplyError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialApplyError, got %v", err)
	}
	if partial.SettlementID != s.ID || partial.Step != StepRestoreOriginals || !errors.Is(err, boom) {
		t.Errorf("unexpected partial error %+v", partial)
	}
	if got, err := f.settlements.Get(ctx, s.ID); err != nil || got.Status != models.SettlementActive {
		t.Fatalf("settlement after partial Cancel = %+v, %v", got, err)
	}
	if o := f.title(t, "t1"); !o.Balance.Equal(dec("100")) || o.SettlementID != "" {
		t.Errorf("t1 not restored by the partial Cancel: %s %q", o.Balance, o.SettlementID)
	}

	f.store.failOn("UpdateSettlement", nil)
	report, err := f.settlements.Cancel(ctx, s.ID, "alice")
	if err != nil {
		t.Fatalf("second Cancel failed: %v", err)
	}
	if len(report.Restored) != 0 || len(report.Installments) != 3 {
		t.Errorf("unexpected repair report %+v", report)
	}
	got, err := f.settlements.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.SettlementCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	for _, inst := range f.installments(t, s.ID) {
		if inst.Status != models.StatusCancelled || !inst.Balance.IsZero() {
			t.Errorf("installment %s = %s/%s", inst.ID, inst.Status, inst.Balance)
		}
	}
	if o := f.title(t, "t2"); !o.Balance.Equal(dec("50")) || o.Status != models.StatusOverdue {
		t.Errorf("t2 = %s/%s after repair", o.Balance, o.Status)
	}
}

func TestDeletePartialApplyAndRerun(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	f.store.failOn("DeleteReceivables", errors.New("timeout"))
	_, err := f.settlements.Delete(ctx, s.ID, true, "alice")
	if !IsStore(err) || IsPartialApply(err) {
		t.Fatalf("expected clean store error, got %v", err)
	}
	if insts := f.installments(t, s.ID); len(insts) != 3 {
		t.Errorf("failed Delete removed installments: %d left", len(insts))
	}
	f.store.failOn("DeleteReceivables", nil)

	boom := errors.New("connection reset")
	f.store.failOn("DeleteSettlement", boom)
	_, err = f.settlements.Delete(ctx, s.ID, true, "alice")
	var partial *PartialApplyError
	if !errors.As(err, &partial) || partial.Step != StepRestoreOriginals || !errors.Is(err, boom) {
		t.Fatalf("expected partial apply after restore, got %v", err)
	}
	if _, err := f.settlements.Get(ctx, s.ID); err != nil {
		t.Fatalf("settlement row gone after partial Delete: %v", err)
	}
	if insts := f.installments(t, s.ID); len(insts) != 0 {
		t.Errorf("expected installments removed, found %d", len(insts))
	}

	f.store.failOn("DeleteSettlement", nil)
	if _, err := f.settlements.Delete(ctx, s.ID, true, "alice"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if _, err := f.settlements.Get(ctx, s.ID); !IsNotFound(err) {
		t.Errorf("expected settlement removed, got %v", err)
	}
	if o := f.title(t, "t1"); !o.Balance.Equal(dec("100")) || o.Status != models.StatusOverdue || o.SettlementID != "" {
		t.Errorf("t1 = %s/%s %q after repair", o.Balance, o.Status, o.SettlementID)
	}
}

func TestFinalizeHistoryFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	s := f.scenarioA(t)
	ctx := context.Background()

	for _, inst := range f.installments(t, s.ID) {
		if _, err := f.settlements.LiquidateInstallment(ctx, LiquidateRequest{InstallmentID: inst.ID, User: "bob"}); err != nil {
			t.Fatalf("LiquidateInstallment %s failed: %v", inst.ID, err)
		}
	}

	boom := errors.New("disk full")
	f.store.failOn("AppendHistory", boom)
	_, err := f.settlements.Finalize(ctx, s.ID, "alice")
	var partial *PartialApplyError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialApplyError, got %v", err)
	}
	if partial.SettlementID != s.ID || partial.Step != StepSettlementStatus || !errors.Is(err, boom) {
		t.Errorf("unexpected partial error %+v", partial)
	}
	if got, err := f.settlements.Get(ctx, s.ID); err != nil || got.Status != models.SettlementLiquidated {
		t.Errorf("settlement after partial Finalize = %+v, %v", got, err)
	}
	if o := f.title(t, "t1"); o.Status != models.StatusLiquidated {
		t.Errorf("t1 = %s, want LIQUIDATED", o.Status)
	}
}
