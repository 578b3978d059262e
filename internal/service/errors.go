package service

import (
	"errors"
	"fmt"
)

// Kind classifies a clean rejection or a store failure.
type Kind int

const (
	// KindValidation is a bad request, rejected before any write.
	KindValidation Kind = iota + 1
	// KindNotFound is an unknown settlement or title id.
	KindNotFound
	// KindConflict is a state that forbids the operation right now.
	KindConflict
	// KindStore is a persistence failure before the first write.
	KindStore
	// KindPreconditionNotMet is a lifecycle step requested too early.
	KindPreconditionNotMet
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStore:
		return "store"
	case KindPreconditionNotMet:
		return "precondition_not_met"
	}
	return "unknown"
}

// Error is returned by every service operation that did not write anything.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsValidation(err error) bool         { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool           { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool           { return KindOf(err) == KindConflict }
func IsStore(err error) bool              { return KindOf(err) == KindStore }
func IsPreconditionNotMet(err error) bool { return KindOf(err) == KindPreconditionNotMet }

// PartialApplyError reports an operation that stopped after at least one
// write. Step names the last write that was confirmed; the repair for a
// settlement is to run Cancel (or Delete) on SettlementID.
type PartialApplyError struct {
	Op           string
	SettlementID string
	Step         string
	Err          error
}

func (e *PartialApplyError) Error() string {
	if e.SettlementID == "" {
		return fmt.Sprintf("%s: partially applied after %s: %v", e.Op, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: settlement %s partially applied after %s: %v", e.Op, e.SettlementID, e.Step, e.Err)
}

func (e *PartialApplyError) Unwrap() error {
	return e.Err
}

// IsPartialApply reports whether err is a *PartialApplyError.
func IsPartialApply(err error) bool {
	var e *PartialApplyError
	return errors.As(err, &e)
}
