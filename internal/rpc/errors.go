package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/service"
)

// Metadata keys set on DataLoss errors so a caller can start the repair.
const (
	HeaderPartialSettlement = "X-Partial-Settlement-Id"
	HeaderPartialStep       = "X-Partial-Step"
)

// toConnectError maps a service error onto a Connect code.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var partial *service.PartialApplyError
	if errors.As(err, &partial) {
		cerr := connect.NewError(connect.CodeDataLoss, err)
		cerr.Meta().Set(HeaderPartialSettlement, partial.SettlementID)
		cerr.Meta().Set(HeaderPartialStep, partial.Step)
		return cerr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	switch service.KindOf(err) {
	case service.KindValidation:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case service.KindNotFound:
		return connect.NewError(connect.CodeNotFound, err)
	case service.KindConflict:
		return connect.NewError(connect.CodeAborted, err)
	case service.KindPreconditionNotMet:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case service.KindStore:
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

func parseDateField(field, value string) (time.Time, error) {
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, invalidArgument("%s: %v", field, err)
	}
	return t, nil
}

func parseAmountField(field, value string) (decimal.Decimal, error) {
	d, err := models.ParseMoney(value)
	if err != nil {
		return decimal.Zero, invalidArgument("%s: %v", field, err)
	}
	return d, nil
}
