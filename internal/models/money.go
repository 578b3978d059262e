package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference at which two amounts are still equal.
var Tolerance = decimal.New(1, -2)

// MoneyEqual reports whether a and b differ by at most Tolerance.
func MoneyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Outstanding reports whether an amount is above the cent tolerance.
func Outstanding(amount decimal.Decimal) bool {
	return amount.GreaterThan(Tolerance)
}

// SumMoney adds the amounts.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to its calendar day at UTC midnight.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as YYYY-MM-DD, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DaysBetween returns the whole days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// AddMonths moves t by n calendar months, clamping to the last day of the
// target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// DatePtr returns a pointer to the truncated date, or nil for the zero time.
func DatePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := Date(t)
	return &d
}
