package services

import (
	"fmt"
	"math"
	"sort"

	"expensetracker/internal/core"
)

const (
	DefaultBudgetWindowMonths = 3
	DefaultBudgetHeadroom     = 1.10
)

// BudgetAdvisor suggests per-category limits from recent spending and
// measures how much of a limit a month has consumed.
type BudgetAdvisor struct {
	windowMonths int
	headroom     float64
}

// NewBudgetAdvisor returns an advisor looking back windowMonths calendar
// months and multiplying the recent mean by headroom. Non-positive values
// fall back to the defaults.
func NewBudgetAdvisor(windowMonths int, headroom float64) *BudgetAdvisor {
	if windowMonths <= 0 {
		windowMonths = DefaultBudgetWindowMonths
	}
	if headroom <= 0 {
		headroom = DefaultBudgetHeadroom
	}
	return &BudgetAdvisor{windowMonths: windowMonths, headroom: headroom}
}

// Window returns the inclusive day range considered for a suggestion.
func (a *BudgetAdvisor) Window(asOf core.Date) (from, to core.Date) {
	return asOf.AddMonths(-a.windowMonths), asOf
}

// Suggest returns headroom times the mean amount of the category's records
// within the window ending at asOf, rounded to the cent. It is zero when the
// window holds no record of that category.
func (a *BudgetAdvisor) Suggest(category string, records []core.Expense, asOf core.Date) core.Money {
	from, to := a.Window(asOf)
	var (
		sum   int64
		count int64
	)
	for _, e := range records {
		if e.Category != category || !e.Date.Between(from, to) {
			continue
		}
		sum += e.Amount.Cents
		count++
	}
	if count == 0 {
		return core.Money{}
	}
	mean := float64(sum) / float64(count)
	return core.Money{Cents: int64(math.Round(a.headroom * mean))}
}

// SuggestAll returns a suggestion for every category present in records,
// sorted by category name.
func (a *BudgetAdvisor) SuggestAll(records []core.Expense, asOf core.Date) []core.BudgetSuggestion {
	out := make([]core.BudgetSuggestion, 0)
	for _, c := range Categories(records) {
		out = append(out, core.BudgetSuggestion{Category: c, Limit: a.Suggest(c, records, asOf)})
	}
	return out
}

// Usage returns 100 * (the category's spend in year/month) / limit.
// A non-positive limit fails with core.ErrInvalidBudget.
func (a *BudgetAdvisor) Usage(category string, limit core.Money, records []core.Expense, year, month int) (float64, error) {
	if limit.Cents <= 0 {
		return 0, core.ErrInvalidBudget
	}
	spent := monthSpend(category, records, year, month)
	return 100 * float64(spent.Cents) / float64(limit.Cents), nil
}

// UsageReport evaluates every budget for one month, ordered by category.
// Any invalid budget fails the whole report.
func (a *BudgetAdvisor) UsageReport(budgets []core.CategoryBudget, records []core.Expense, year, month int) ([]core.BudgetUsage, error) {
	out := make([]core.BudgetUsage, 0, len(budgets))
	for _, b := range budgets {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("budget %q: %w", b.Category, err)
		}
		pct, err := a.Usage(b.Category, b.Limit, records, year, month)
		if err != nil {
			return nil, fmt.Errorf("budget %q: %w", b.Category, err)
		}
		out = append(out, core.BudgetUsage{
			Category: b.Category,
			Limit:    b.Limit,
			Spent:    monthSpend(b.Category, records, year, month),
			Percent:  pct,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func monthSpend(category string, records []core.Expense, year, month int) core.Money {
	var spent core.Money
	for _, e := range records {
		if e.Category != category {
			continue
		}
		y, m, _ := e.Date.Date()
		if y == year && int(m) == month {
			spent = spent.Add(e.Amount)
		}
	}
	return spent
}

// Categories returns the distinct category names of records, sorted.
func Categories(records []core.Expense) []string {
	seen := map[string]struct{}{}
	for _, e := range records {
		seen[e.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
