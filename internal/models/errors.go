package models

import "errors"

var (
	// ErrMissingID is returned when a record has no id.
	ErrMissingID = errors.New("models: missing id")
	// ErrMissingCounterparty is returned when a title has no client or supplier.
	ErrMissingCounterparty = errors.New("models: missing client or supplier")
	// ErrNegativeAmount is returned for a negative money value.
	ErrNegativeAmount = errors.New("models: negative amount")
	// ErrBalanceExceedsFace is returned when balance is above face value.
	ErrBalanceExceedsFace = errors.New("models: balance exceeds face value")
	// ErrUnknownStatus is returned for a status outside the enum.
	ErrUnknownStatus = errors.New("models: unknown status")
	// ErrSettledWithBalance is returned when a settled status carries a balance.
	ErrSettledWithBalance = errors.New("models: settled title with outstanding balance")
	// ErrInvalidAmount is returned when a money string cannot be parsed.
	ErrInvalidAmount = errors.New("models: invalid amount")
	// ErrInvalidDate is returned when a date string cannot be parsed.
	ErrInvalidDate = errors.New("models: invalid date")
)
