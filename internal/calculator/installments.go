package calculator

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

var (
	// ErrInvalidCount is returned when fewer than one installment is requested.
	ErrInvalidCount = errors.New("calculator: installment count must be at least 1")
	// ErrTooManyInstallments is returned above MaxInstallments.
	ErrTooManyInstallments = errors.New("calculator: too many installments")
	// ErrInvalidAmount is returned for a non-positive agreed amount.
	ErrInvalidAmount = errors.New("calculator: agreed amount must be positive")
	// ErrAmountTooSmall is returned when an installment would round to zero.
	ErrAmountTooSmall = errors.New("calculator: agreed amount too small for installment count")
	// ErrInvalidFrequency is returned for an unknown frequency.
	ErrInvalidFrequency = errors.New("calculator: unknown frequency")
	// ErrMissingFirstDate is returned when no first due date is given.
	ErrMissingFirstDate = errors.New("calculator: first installment date required")
)

// MaxInstallments bounds the schedule of a single settlement.
const MaxInstallments = 360

// SplitAmount divides total into n installments rounded down to the cent.
// The final installment absorbs the remainder so the parts always add up to
// total exactly.
func SplitAmount(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, ErrInvalidCount
	}
	if n > MaxInstallments {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyInstallments, n, MaxInstallments)
	}
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}
	count := decimal.NewFromInt(int64(n))
	base := total.DivRound(count, 6).Truncate(2)
	if !base.IsPositive() {
		return nil, ErrAmountTooSmall
	}

	parts := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		parts[i] = base
	}
	parts[n-1] = total.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))
	return parts, nil
}

// DueDate returns the due date of installment index i (0-based): WEEKLY adds
// 7 days per step, BIWEEKLY 15 days, MONTHLY one calendar month.
func DueDate(first time.Time, freq models.Frequency, i int) (time.Time, error) {
	first = models.Date(first)
	switch freq {
	case models.FrequencyWeekly:
		return first.AddDate(0, 0, 7*i), nil
	case models.FrequencyBiweekly:
		return first.AddDate(0, 0, 15*i), nil
	case models.FrequencyMonthly:
		return models.AddMonths(first, i), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, freq)
}

// BuildSchedule computes the installment lines of a settlement.
func BuildSchedule(s *models.Settlement) ([]models.ScheduleLine, error) {
	if s.FirstInstallmentDate.IsZero() {
		return nil, ErrMissingFirstDate
	}
	if !s.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, s.Frequency)
	}
	amounts, err := SplitAmount(s.AgreedAmount, s.InstallmentCount)
	if err != nil {
		return nil, err
	}

	lines := make([]models.ScheduleLine, len(amounts))
	for i, amount := range amounts {
		due, err := DueDate(s.FirstInstallmentDate, s.Frequency, i)
		if err != nil {
			return nil, err
		}
		lines[i] = models.ScheduleLine{
			Number:  i + 1,
			ID:      s.InstallmentID(i + 1),
			DueDate: due,
			Amount:  amount,
			Status:  models.StatusOpen,
		}
	}
	return lines, nil
}

// InstallmentTitles turns schedule lines into installment rows for s.
func InstallmentTitles(s *models.Settlement, lines []models.ScheduleLine) []*models.ReceivableTitle {
	titles := make([]*models.ReceivableTitle, len(lines))
	for i, line := range lines {
		titles[i] = &models.ReceivableTitle{
			ID:              line.ID,
			Client:          s.Client,
			IssueDate:       models.Date(s.CreatedAt),
			DueDate:         line.DueDate,
			FaceValue:       line.Amount,
			Balance:         line.Amount,
			Status:          models.StatusOpen,
			CollectionState: models.CollectionNotCollectable,
			DocumentNumber:  fmt.Sprintf("%s %d/%d", models.SettlementCategory, line.Number, len(lines)),
			Category:        models.SettlementCategory,
			Origin:          models.OriginInternalSettlement,
			SettlementID:    s.ID,
			ReceivedAmount:  decimal.Zero,
		}
	}
	return titles
}
