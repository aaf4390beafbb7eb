package services

import (
	"sort"

	"expensetracker/internal/core"
)

// Aggregator computes period and category totals over expense records.
// It holds no state; the zero value is ready to use.
type Aggregator struct{}

// Aggregate groups records by (year, month), (calendar year, ISO week) and
// year. Each slice is ordered by key ascending and contains only non-empty
// buckets, so the result does not depend on the input order.
func (Aggregator) Aggregate(records []core.Expense) core.Summary {
	monthly := map[core.PeriodKey]*core.PeriodTotal{}
	weekly := map[core.PeriodKey]*core.PeriodTotal{}
	yearly := map[core.PeriodKey]*core.PeriodTotal{}

	for _, e := range records {
		if e.Date.IsEmpty() {
			continue
		}
		y, m, _ := e.Date.Date()
		_, w := e.Date.ISOWeek()

		add(monthly, core.PeriodKey{Period: core.Monthly, Year: y, Num: int(m)}, e.Amount)
		add(weekly, core.PeriodKey{Period: core.Weekly, Year: y, Num: w}, e.Amount)
		add(yearly, core.PeriodKey{Period: core.Yearly, Year: y}, e.Amount)
	}

	return core.Summary{
		Monthly: sortedTotals(monthly),
		Weekly:  sortedTotals(weekly),
		Yearly:  sortedTotals(yearly),
	}
}

// ByCategory sums the records whose day lies in [from, to], one entry per
// category sorted by name. An empty from or to leaves that side open.
func (Aggregator) ByCategory(records []core.Expense, from, to core.Date) []core.CategoryAmount {
	sums := map[string]int64{}
	for _, e := range records {
		if !from.IsEmpty() && e.Date.Before(from.Time) {
			continue
		}
		if !to.IsEmpty() && e.Date.After(to.Time) {
			continue
		}
		sums[e.Category] += e.Amount.Cents
	}
	return sortedCategories(sums)
}

// MonthOverview returns the total and per-category sums for one calendar month.
func (a Aggregator) MonthOverview(records []core.Expense, year, month int) core.MonthOverview {
	first := core.NewDate(year, month, 1)
	last := first.AddMonths(1)
	last = core.DateOf(last.AddDate(0, 0, -1))

	byCat := a.ByCategory(records, first, last)
	var total core.Money
	for _, c := range byCat {
		total = total.Add(c.Amount)
	}
	return core.MonthOverview{
		Year:       year,
		Month:      month,
		Total:      total,
		ByCategory: byCat,
	}
}

func add(buckets map[core.PeriodKey]*core.PeriodTotal, key core.PeriodKey, amount core.Money) {
	pt, ok := buckets[key]
	if !ok {
		pt = &core.PeriodTotal{Key: key}
		buckets[key] = pt
	}
	pt.Total = pt.Total.Add(amount)
	pt.Count++
}

func sortedTotals(buckets map[core.PeriodKey]*core.PeriodTotal) []core.PeriodTotal {
	out := make([]core.PeriodTotal, 0, len(buckets))
	for _, pt := range buckets {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

func sortedCategories(sums map[string]int64) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(sums))
	for name, cents := range sums {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
