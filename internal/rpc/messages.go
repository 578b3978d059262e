package rpc

import (
	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/calculator"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/reconcile"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/service"
)

// Request fields named User are only used when the call carries no bearer
// token. Dates travel as YYYY-MM-DD strings and amounts as decimal strings.

type Empty struct{}

// Imports

type StageReceivablesRequest struct {
	Titles []*models.ReceivableTitle `json:"titles"`
}

type StageReceivablesResponse struct {
	Items    []reconcile.ReceivableItem `json:"items"`
	Summary  models.StagingSummary      `json:"summary"`
	Rejected []RejectedRow              `json:"rejected,omitempty"`
}

// RejectedRow is a spreadsheet row the reader could not use.
type RejectedRow struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type CommitReceivablesRequest struct {
	Items []reconcile.ReceivableItem `json:"items"`
	User  string                     `json:"user,omitempty"`
}

type StagePayablesRequest struct {
	Payables []*models.PayableTitle `json:"payables"`
}

type StagePayablesResponse struct {
	Items    []reconcile.PayableItem `json:"items"`
	Summary  models.StagingSummary   `json:"summary"`
	Rejected []RejectedRow           `json:"rejected,omitempty"`
}

type CommitPayablesRequest struct {
	Items []reconcile.PayableItem `json:"items"`
	User  string                  `json:"user,omitempty"`
}

type CommitResponse struct {
	Written int                   `json:"written"`
	Summary models.StagingSummary `json:"summary"`
}

// WorkbookRequest carries an .xlsx file in the import column layout.
type WorkbookRequest struct {
	Workbook []byte `json:"workbook"`
}

type ExportStagingRequest struct {
	Items []reconcile.ReceivableItem `json:"items"`
}

// FileResponse carries a generated document.
type FileResponse struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Settlements

type CreateSettlementRequest struct {
	ID                   string   `json:"id,omitempty"`
	Client               string   `json:"client"`
	TitleIDs             []string `json:"title_ids"`
	AgreedAmount         string   `json:"agreed_amount"`
	InstallmentCount     int      `json:"installment_count"`
	Frequency            string   `json:"frequency"`
	FirstInstallmentDate string   `json:"first_installment_date"`
	User                 string   `json:"user,omitempty"`

	// IncludeContract asks for the contract PDF in the response.
	IncludeContract bool `json:"include_contract,omitempty"`
}

type CreateSettlementResponse struct {
	Settlement *models.Settlement `json:"settlement"`
	Contract   []byte             `json:"contract,omitempty"`
}

type SettlementRequest struct {
	ID   string `json:"id"`
	User string `json:"user,omitempty"`
}

type DeleteSettlementRequest struct {
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
	User    string `json:"user,omitempty"`
}

type SettlementResponse struct {
	Settlement *models.Settlement `json:"settlement"`
}

type ReleaseResponse struct {
	Settlement    *models.Settlement `json:"settlement"`
	Restored      []string           `json:"restored"`
	Installments  []string           `json:"installments"`
	Skipped       []string           `json:"skipped,omitempty"`
	Disagreements []string           `json:"disagreements,omitempty"`
}

func releaseResponse(r *service.ReleaseReport) *ReleaseResponse {
	return &ReleaseResponse{
		Settlement:    r.Settlement,
		Restored:      r.Restored,
		Installments:  r.Installments,
		Skipped:       r.Skipped,
		Disagreements: r.Disagreements,
	}
}

type ListSettlementsRequest struct {
	Client   string                    `json:"client,omitempty"`
	Statuses []models.SettlementStatus `json:"statuses,omitempty"`
}

type ListSettlementsResponse struct {
	Settlements []*models.Settlement `json:"settlements"`
}

type ScheduleResponse struct {
	Schedule *models.SettlementSchedule `json:"schedule"`
}

type ConsistencyResponse struct {
	Report *service.ConsistencyReport `json:"report"`
}

type LiquidateRequest struct {
	InstallmentID string `json:"installment_id"`
	PaymentDate   string `json:"payment_date,omitempty"`
	Method        string `json:"method,omitempty"`
	User          string `json:"user,omitempty"`
}

type LiquidateResponse struct {
	Installment *models.ReceivableTitle `json:"installment"`
	AllPaid     bool                    `json:"all_paid"`
}

// Notary

type NotaryRequest struct {
	TitleIDs []string `json:"title_ids"`
	User     string   `json:"user,omitempty"`
}

type NotaryResponse struct {
	TitleIDs []string         `json:"title_ids"`
	Clients  []ClientExposure `json:"clients"`
}

type ClientExposure struct {
	Client string          `json:"client"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// Collection

type Debtor struct {
	Client         string           `json:"client"`
	TotalOverdue   decimal.Decimal  `json:"total_overdue"`
	OverdueUpTo15  decimal.Decimal  `json:"overdue_up_to_15"`
	OverdueOver15  decimal.Decimal  `json:"overdue_over_15"`
	AtNotaryTotal  decimal.Decimal  `json:"at_notary_total"`
	OpenTitleCount int              `json:"open_title_count"`
	MaxDaysOverdue int              `json:"max_days_overdue"`
	NextActionDate string           `json:"next_action_date,omitempty"`
	Queue          calculator.Queue `json:"queue"`
}

func debtors(in []service.DebtorSummary) []Debtor {
	out := make([]Debtor, len(in))
	for i, d := range in {
		out[i] = Debtor{
			Client:         d.Client,
			TotalOverdue:   d.TotalOverdue,
			OverdueUpTo15:  d.OverdueUpTo15,
			OverdueOver15:  d.OverdueOver15,
			AtNotaryTotal:  d.AtNotaryTotal,
			OpenTitleCount: d.OpenTitleCount,
			MaxDaysOverdue: d.MaxDaysOverdue,
			Queue:          d.Queue,
		}
		if d.NextActionDate != nil {
			out[i].NextActionDate = models.FormatDate(*d.NextActionDate)
		}
	}
	return out
}

type DebtorsResponse struct {
	Debtors []Debtor `json:"debtors"`
}

type QueuesResponse struct {
	DueNow    []Debtor `json:"due_now"`
	Scheduled []Debtor `json:"scheduled"`
}

type RecordContactRequest struct {
	Client         string `json:"client"`
	Action         string `json:"action"`
	Note           string `json:"note,omitempty"`
	NextActionDate string `json:"next_action_date,omitempty"`
	User           string `json:"user,omitempty"`
}

type HistoryRequest struct {
	Client string `json:"client"`
}

type HistoryEntryResponse struct {
	Entry *models.CollectionHistoryEntry `json:"entry"`
}

type HistoryResponse struct {
	Entries []models.CollectionHistoryEntry `json:"entries"`
}

type AuditRequest struct {
	Limit int `json:"limit,omitempty"`
}

type AuditResponse struct {
	Entries []models.AuditEntry `json:"entries"`
}
