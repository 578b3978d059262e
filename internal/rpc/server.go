// Package rpc exposes the receivables services as Connect unary procedures
// carrying JSON messages.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/document"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/ingest"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/middleware"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// Services are the backends a Server dispatches to.
type Services struct {
	Settlements *service.SettlementService
	Notary      *service.NotaryService
	Collection  *service.CollectionService
	Imports     *service.ImportService

	// Today returns the current business date used to normalize imports.
	Today func() time.Time
}

// Server implements the ReceivablesService procedures.
type Server struct {
	svc Services
}

// NewServer creates a Server. A nil Today falls back to the system date.
func NewServer(svc Services) *Server {
	if svc.Today == nil {
		svc.Today = func() time.Time { return models.Date(time.Now()) }
	}
	return &Server{svc: svc}
}

// actor prefers the authenticated operator over the user named in the body.
func actor(ctx context.Context, fallback string) string {
	if user := middleware.GetUser(ctx); user != "" {
		return user
	}
	return fallback
}

func (s *Server) normalizer() models.Normalizer {
	return models.Normalizer{Today: s.svc.Today()}
}

func rejected(rows []ingest.RowError) []RejectedRow {
	out := make([]RejectedRow, len(rows))
	for i, r := range rows {
		out[i] = RejectedRow{Row: r.Row, Error: r.Err.Error()}
	}
	return out
}

// StageReceivables normalizes the titles and diffs them against the store.
func (s *Server) StageReceivables(ctx context.Context, req *connect.Request[StageReceivablesRequest]) (*connect.Response[StageReceivablesResponse], error) {
	slog.Info("StageReceivables request received", "titles", len(req.Msg.Titles))

	n := s.normalizer()
	for i, t := range req.Msg.Titles {
		if t == nil {
			return nil, invalidArgument("title %d is empty", i+1)
		}
		if err := n.Receivable(t); err != nil {
			return nil, invalidArgument("title %d (%s): %v", i+1, t.ID, err)
		}
	}
	items, err := s.svc.Imports.StageReceivables(ctx, req.Msg.Titles)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StageReceivablesResponse{
		Items:   items,
		Summary: models.Summarize(items),
	}), nil
}

// ImportReceivablesXLSX reads a workbook and stages its usable rows.
func (s *Server) ImportReceivablesXLSX(ctx context.Context, req *connect.Request[WorkbookRequest]) (*connect.Response[StageReceivablesResponse], error) {
	slog.Info("ImportReceivablesXLSX request received", "bytes", len(req.Msg.Workbook))

	titles, rows, err := ingest.ReadReceivablesXLSX(bytes.NewReader(req.Msg.Workbook), s.normalizer())
	if err != nil {
		return nil, invalidArgument("workbook: %v", err)
	}
	items, err := s.svc.Imports.StageReceivables(ctx, titles)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StageReceivablesResponse{
		Items:    items,
		Summary:  models.Summarize(items),
		Rejected: rejected(rows),
	}), nil
}

// CommitReceivables writes the reviewed staging list.
func (s *Server) CommitReceivables(ctx context.Context, req *connect.Request[CommitReceivablesRequest]) (*connect.Response[CommitResponse], error) {
	slog.Info("CommitReceivables request received", "items", len(req.Msg.Items))

	res, err := s.svc.Imports.CommitReceivables(ctx, req.Msg.Items, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CommitResponse{Written: res.Written, Summary: res.Summary}), nil
}

// StagePayables normalizes the payables and diffs them against the store.
func (s *Server) StagePayables(ctx context.Context, req *connect.Request[StagePayablesRequest]) (*connect.Response[StagePayablesResponse], error) {
	slog.Info("StagePayables request received", "payables", len(req.Msg.Payables))

	n := s.normalizer()
	for i, p := range req.Msg.Payables {
		if p == nil {
			return nil, invalidArgument("payable %d is empty", i+1)
		}
		if err := n.Payable(p); err != nil {
			return nil, invalidArgument("payable %d (%s): %v", i+1, p.ID, err)
		}
	}
	items, err := s.svc.Imports.StagePayables(ctx, req.Msg.Payables)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StagePayablesResponse{
		Items:   items,
		Summary: models.Summarize(items),
	}), nil
}

// ImportPayablesXLSX reads a payables workbook and stages its usable rows.
func (s *Server) ImportPayablesXLSX(ctx context.Context, req *connect.Request[WorkbookRequest]) (*connect.Response[StagePayablesResponse], error) {
	slog.Info("ImportPayablesXLSX request received", "bytes", len(req.Msg.Workbook))

	payables, rows, err := ingest.ReadPayablesXLSX(bytes.NewReader(req.Msg.Workbook), s.normalizer())
	if err != nil {
		return nil, invalidArgument("workbook: %v", err)
	}
	items, err := s.svc.Imports.StagePayables(ctx, payables)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StagePayablesResponse{
		Items:    items,
		Summary:  models.Summarize(items),
		Rejected: rejected(rows),
	}), nil
}

// CommitPayables writes the reviewed payables staging list.
func (s *Server) CommitPayables(ctx context.Context, req *connect.Request[CommitPayablesRequest]) (*connect.Response[CommitResponse], error) {
	slog.Info("CommitPayables request received", "items", len(req.Msg.Items))

	res, err := s.svc.Imports.CommitPayables(ctx, req.Msg.Items, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CommitResponse{Written: res.Written, Summary: res.Summary}), nil
}

// ExportStagingXLSX renders a receivables staging list as a workbook.
func (s *Server) ExportStagingXLSX(ctx context.Context, req *connect.Request[ExportStagingRequest]) (*connect.Response[FileResponse], error) {
	slog.Info("ExportStagingXLSX request received", "items", len(req.Msg.Items))

	data, err := ingest.ReceivableStagingXLSX(req.Msg.Items)
	if err != nil {
		slog.Error("Failed to render staging workbook", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&FileResponse{
		Name:        "staging.xlsx",
		ContentType: contentTypeXLSX,
		Data:        data,
	}), nil
}

// CreateSettlement negotiates titles into a settlement.
func (s *Server) CreateSettlement(ctx context.Context, req *connect.Request[CreateSettlementRequest]) (*connect.Response[CreateSettlementResponse], error) {
	msg := req.Msg
	slog.Info("CreateSettlement request received", "client", msg.Client, "titles", len(msg.TitleIDs))

	amount, err := parseAmountField("agreed_amount", msg.AgreedAmount)
	if err != nil {
		return nil, err
	}
	first, err := parseDateField("first_installment_date", msg.FirstInstallmentDate)
	if err != nil {
		return nil, err
	}

	settlement, err := s.svc.Settlements.Create(ctx, service.CreateSettlementRequest{
		ID:                   msg.ID,
		Client:               msg.Client,
		TitleIDs:             msg.TitleIDs,
		AgreedAmount:         amount,
		InstallmentCount:     msg.InstallmentCount,
		Frequency:            models.Frequency(msg.Frequency),
		FirstInstallmentDate: first,
		User:                 actor(ctx, msg.User),
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &CreateSettlementResponse{Settlement: settlement}
	if msg.IncludeContract {
		// The settlement exists at this point; a rendering failure only
		// drops the attachment.
		if pdf, err := s.contract(ctx, settlement.ID); err != nil {
			slog.Warn("Failed to render contract", "settlement_id", settlement.ID, "error", err)
		} else {
			resp.Contract = pdf
		}
	}
	return connect.NewResponse(resp), nil
}

func (s *Server) contract(ctx context.Context, id string) ([]byte, error) {
	schedule, err := s.svc.Settlements.Schedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return document.ContractPDF(schedule)
}

// FinalizeSettlement closes a fully paid settlement.
func (s *Server) FinalizeSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	slog.Info("FinalizeSettlement request received", "settlement_id", req.Msg.ID)

	settlement, err := s.svc.Settlements.Finalize(ctx, req.Msg.ID, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettlementResponse{Settlement: settlement}), nil
}

// CancelSettlement cancels a settlement and restores its originals.
func (s *Server) CancelSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[ReleaseResponse], error) {
	slog.Info("CancelSettlement request received", "settlement_id", req.Msg.ID)

	report, err := s.svc.Settlements.Cancel(ctx, req.Msg.ID, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(releaseResponse(report)), nil
}

// DeleteSettlement removes a settlement and its installments.
func (s *Server) DeleteSettlement(ctx context.Context, req *connect.Request[DeleteSettlementRequest]) (*connect.Response[ReleaseResponse], error) {
	slog.Info("DeleteSettlement request received", "settlement_id", req.Msg.ID, "confirm", req.Msg.Confirm)

	report, err := s.svc.Settlements.Delete(ctx, req.Msg.ID, req.Msg.Confirm, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(releaseResponse(report)), nil
}

// GetSettlement returns one settlement.
func (s *Server) GetSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	slog.Info("GetSettlement request received", "settlement_id", req.Msg.ID)

	settlement, err := s.svc.Settlements.Get(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettlementResponse{Settlement: settlement}), nil
}

// ListSettlements returns settlements filtered by client and status.
func (s *Server) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	slog.Info("ListSettlements request received", "client", req.Msg.Client)

	settlements, err := s.svc.Settlements.List(ctx, req.Msg.Client, req.Msg.Statuses...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListSettlementsResponse{Settlements: settlements}), nil
}

// GetSchedule returns a settlement with its originals and installments.
func (s *Server) GetSchedule(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[ScheduleResponse], error) {
	slog.Info("GetSchedule request received", "settlement_id", req.Msg.ID)

	schedule, err := s.svc.Settlements.Schedule(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ScheduleResponse{Schedule: schedule}), nil
}

// GetContract renders the settlement contract as a PDF.
func (s *Server) GetContract(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[FileResponse], error) {
	slog.Info("GetContract request received", "settlement_id", req.Msg.ID)

	schedule, err := s.svc.Settlements.Schedule(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	pdf, err := document.ContractPDF(schedule)
	if err != nil {
		slog.Error("Failed to render contract", "settlement_id", req.Msg.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&FileResponse{
		Name:        fmt.Sprintf("settlement-%s.pdf", req.Msg.ID),
		ContentType: contentTypePDF,
		Data:        pdf,
	}), nil
}

// CheckConsistency reports membership disagreements of a settlement.
func (s *Server) CheckConsistency(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[ConsistencyResponse], error) {
	slog.Info("CheckConsistency request received", "settlement_id", req.Msg.ID)

	report, err := s.svc.Settlements.CheckConsistency(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ConsistencyResponse{Report: report}), nil
}

// LiquidateInstallment records the payment of one installment.
func (s *Server) LiquidateInstallment(ctx context.Context, req *connect.Request[LiquidateRequest]) (*connect.Response[LiquidateResponse], error) {
	msg := req.Msg
	slog.Info("LiquidateInstallment request received", "installment_id", msg.InstallmentID)

	paid, err := parseDateField("payment_date", msg.PaymentDate)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Settlements.LiquidateInstallment(ctx, service.LiquidateRequest{
		InstallmentID: msg.InstallmentID,
		PaymentDate:   paid,
		Method:        msg.Method,
		User:          actor(ctx, msg.User),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LiquidateResponse{Installment: res.Installment, AllPaid: res.AllPaid}), nil
}

func notaryResponse(res *service.NotaryResult) *NotaryResponse {
	out := &NotaryResponse{TitleIDs: res.TitleIDs, Clients: make([]ClientExposure, len(res.Clients))}
	for i, c := range res.Clients {
		out.Clients[i] = ClientExposure{Client: c.Client, Count: c.Count, Total: c.Total}
	}
	return out
}

// SendToNotary protests the titles.
func (s *Server) SendToNotary(ctx context.Context, req *connect.Request[NotaryRequest]) (*connect.Response[NotaryResponse], error) {
	slog.Info("SendToNotary request received", "titles", len(req.Msg.TitleIDs))

	res, err := s.svc.Notary.SendToNotary(ctx, req.Msg.TitleIDs, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(notaryResponse(res)), nil
}

// RemoveFromNotary withdraws the titles from protest.
func (s *Server) RemoveFromNotary(ctx context.Context, req *connect.Request[NotaryRequest]) (*connect.Response[NotaryResponse], error) {
	slog.Info("RemoveFromNotary request received", "titles", len(req.Msg.TitleIDs))

	res, err := s.svc.Notary.RemoveFromNotary(ctx, req.Msg.TitleIDs, actor(ctx, req.Msg.User))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(notaryResponse(res)), nil
}

// ListDebtors returns every client with overdue or protested exposure.
func (s *Server) ListDebtors(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[DebtorsResponse], error) {
	slog.Info("ListDebtors request received")

	list, err := s.svc.Collection.Debtors(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DebtorsResponse{Debtors: debtors(list)}), nil
}

// GetQueues splits the debtors into the due-now and scheduled queues.
func (s *Server) GetQueues(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[QueuesResponse], error) {
	slog.Info("GetQueues request received")

	q, err := s.svc.Collection.Queues(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&QueuesResponse{
		DueNow:    debtors(q.DueNow),
		Scheduled: debtors(q.Scheduled),
	}), nil
}

// RecordContact appends a collection contact to a client's history.
func (s *Server) RecordContact(ctx context.Context, req *connect.Request[RecordContactRequest]) (*connect.Response[HistoryEntryResponse], error) {
	msg := req.Msg
	slog.Info("RecordContact request received", "client", msg.Client, "action", msg.Action)

	var next *time.Time
	if msg.NextActionDate != "" {
		d, err := parseDateField("next_action_date", msg.NextActionDate)
		if err != nil {
			return nil, err
		}
		next = &d
	}
	entry, err := s.svc.Collection.RecordContact(ctx, service.ContactRequest{
		Client:         msg.Client,
		Action:         msg.Action,
		Note:           msg.Note,
		NextActionDate: next,
		User:           actor(ctx, msg.User),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&HistoryEntryResponse{Entry: entry}), nil
}

// GetHistory returns a client's collection history.
func (s *Server) GetHistory(ctx context.Context, req *connect.Request[HistoryRequest]) (*connect.Response[HistoryResponse], error) {
	slog.Info("GetHistory request received", "client", req.Msg.Client)

	entries, err := s.svc.Collection.History(ctx, req.Msg.Client)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&HistoryResponse{Entries: entries}), nil
}

// ListAudit returns the most recent audit entries.
func (s *Server) ListAudit(ctx context.Context, req *connect.Request[AuditRequest]) (*connect.Response[AuditResponse], error) {
	slog.Info("ListAudit request received", "limit", req.Msg.Limit)

	if req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must not be negative"))
	}
	entries, err := s.svc.Collection.AuditLog(ctx, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AuditResponse{Entries: entries}), nil
}
