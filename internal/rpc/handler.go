package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// ServiceName is the fully-qualified name of the receivables service.
const ServiceName = "receivables.v1.ReceivablesService"

// Procedure paths. Each is the route a client calls.
const (
	StageReceivablesProcedure      = "/" + ServiceName + "/StageReceivables"
	ImportReceivablesXLSXProcedure = "/" + ServiceName + "/ImportReceivablesXLSX"
	CommitReceivablesProcedure     = "/" + ServiceName + "/CommitReceivables"
	StagePayablesProcedure         = "/" + ServiceName + "/StagePayables"
	ImportPayablesXLSXProcedure    = "/" + ServiceName + "/ImportPayablesXLSX"
	CommitPayablesProcedure        = "/" + ServiceName + "/CommitPayables"
	ExportStagingXLSXProcedure     = "/" + ServiceName + "/ExportStagingXLSX"
	CreateSettlementProcedure      = "/" + ServiceName + "/CreateSettlement"
	FinalizeSettlementProcedure    = "/" + ServiceName + "/FinalizeSettlement"
	CancelSettlementProcedure      = "/" + ServiceName + "/CancelSettlement"
	DeleteSettlementProcedure      = "/" + ServiceName + "/DeleteSettlement"
	GetSettlementProcedure         = "/" + ServiceName + "/GetSettlement"
	ListSettlementsProcedure       = "/" + ServiceName + "/ListSettlements"
	GetScheduleProcedure           = "/" + ServiceName + "/GetSchedule"
	GetContractProcedure           = "/" + ServiceName + "/GetContract"
	CheckConsistencyProcedure      = "/" + ServiceName + "/CheckConsistency"
	LiquidateInstallmentProcedure  = "/" + ServiceName + "/LiquidateInstallment"
	SendToNotaryProcedure          = "/" + ServiceName + "/SendToNotary"
	RemoveFromNotaryProcedure      = "/" + ServiceName + "/RemoveFromNotary"
	ListDebtorsProcedure           = "/" + ServiceName + "/ListDebtors"
	GetQueuesProcedure             = "/" + ServiceName + "/GetQueues"
	RecordContactProcedure         = "/" + ServiceName + "/RecordContact"
	GetHistoryProcedure            = "/" + ServiceName + "/GetHistory"
	ListAuditProcedure             = "/" + ServiceName + "/ListAudit"
)

// NewHandler builds an HTTP handler from the server. It returns the path on
// which to mount the handler and the handler itself.
func NewHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()

	register(mux, StageReceivablesProcedure, s.StageReceivables, opts)
	register(mux, ImportReceivablesXLSXProcedure, s.ImportReceivablesXLSX, opts)
	register(mux, CommitReceivablesProcedure, s.CommitReceivables, opts)
	register(mux, StagePayablesProcedure, s.StagePayables, opts)
	register(mux, ImportPayablesXLSXProcedure, s.ImportPayablesXLSX, opts)
	register(mux, CommitPayablesProcedure, s.CommitPayables, opts)
	register(mux, ExportStagingXLSXProcedure, s.ExportStagingXLSX, opts)
	register(mux, CreateSettlementProcedure, s.CreateSettlement, opts)
	register(mux, FinalizeSettlementProcedure, s.FinalizeSettlement, opts)
	register(mux, CancelSettlementProcedure, s.CancelSettlement, opts)
	register(mux, DeleteSettlementProcedure, s.DeleteSettlement, opts)
	register(mux, GetSettlementProcedure, s.GetSettlement, opts)
	register(mux, ListSettlementsProcedure, s.ListSettlements, opts)
	register(mux, GetScheduleProcedure, s.GetSchedule, opts)
	register(mux, GetContractProcedure, s.GetContract, opts)
	register(mux, CheckConsistencyProcedure, s.CheckConsistency, opts)
	register(mux, LiquidateInstallmentProcedure, s.LiquidateInstallment, opts)
	register(mux, SendToNotaryProcedure, s.SendToNotary, opts)
	register(mux, RemoveFromNotaryProcedure, s.RemoveFromNotary, opts)
	register(mux, ListDebtorsProcedure, s.ListDebtors, opts)
	register(mux, GetQueuesProcedure, s.GetQueues, opts)
	register(mux, RecordContactProcedure, s.RecordContact, opts)
	register(mux, GetHistoryProcedure, s.GetHistory, opts)
	register(mux, ListAuditProcedure, s.ListAudit, opts)

	return "/" + ServiceName + "/", mux
}

func register[Req, Res any](
	mux *http.ServeMux,
	procedure string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}

// NewClient returns a unary client for one procedure of a server at baseURL.
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts ...connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}
