package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

// ShortOverdueDays is the upper bound (inclusive) of the short overdue bucket.
const ShortOverdueDays = 15

// DebtorAging is the per-client rollup of receivable titles.
type DebtorAging struct {
	Client string

	// TotalOverdue sums outstanding balances past their due date.
	TotalOverdue  decimal.Decimal
	OverdueUpTo15 decimal.Decimal
	OverdueOver15 decimal.Decimal

	// AtNotaryTotal sums the exposure of titles under protest.
	AtNotaryTotal decimal.Decimal

	OpenTitleCount int
	MaxDaysOverdue int
}

// AgeTitles groups titles by client and buckets overdue balances by days late
// on today. Clients are returned in descending TotalOverdue order.
func AgeTitles(titles []*models.ReceivableTitle, today time.Time) []DebtorAging {
	today = models.Date(today)
	byClient := make(map[string]*DebtorAging)

	for _, t := range titles {
		agg, ok := byClient[t.Client]
		if !ok {
			agg = &DebtorAging{
				Client:        t.Client,
				TotalOverdue:  decimal.Zero,
				OverdueUpTo15: decimal.Zero,
				OverdueOver15: decimal.Zero,
				AtNotaryTotal: decimal.Zero,
			}
			byClient[t.Client] = agg
		}

		if models.Outstanding(t.Balance) && (t.Status == models.StatusOpen || t.Status == models.StatusOverdue) {
			agg.OpenTitleCount++
		}
		if t.CollectionState.AtNotary() {
			agg.AtNotaryTotal = agg.AtNotaryTotal.Add(t.Exposure())
		}
		if !t.Overdue(today) {
			continue
		}

		days := models.DaysBetween(t.DueDate, today)
		agg.TotalOverdue = agg.TotalOverdue.Add(t.Balance)
		if days <= ShortOverdueDays {
			agg.OverdueUpTo15 = agg.OverdueUpTo15.Add(t.Balance)
		} else {
			agg.OverdueOver15 = agg.OverdueOver15.Add(t.Balance)
		}
		if days > agg.MaxDaysOverdue {
			agg.MaxDaysOverdue = days
		}
	}

	result := make([]DebtorAging, 0, len(byClient))
	for _, agg := range byClient {
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if c := result[i].TotalOverdue.Cmp(result[j].TotalOverdue); c != 0 {
			return c > 0
		}
		return result[i].Client < result[j].Client
	})
	return result
}

// Debtor reports whether the client has anything to collect or under protest.
func (a DebtorAging) Debtor() bool {
	return models.Outstanding(a.TotalOverdue) || a.AtNotaryTotal.IsPositive()
}
