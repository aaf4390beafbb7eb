package core

import "fmt"

// PeriodKey identifies one aggregation bucket. Num is the month (1-12) for
// Monthly keys, the ISO week (1-53) for Weekly keys and 0 for Yearly keys.
// Weekly keys pair the calendar year with the ISO week number.
type PeriodKey struct {
	Period Period
	Year   int
	Num    int
}

// Less orders keys by year, then by month or week number.
func (k PeriodKey) Less(o PeriodKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Num < o.Num
}

func (k PeriodKey) String() string {
	switch k.Period {
	case Monthly:
		return fmt.Sprintf("%04d-%02d", k.Year, k.Num)
	case Weekly:
		return fmt.Sprintf("%04d-W%02d", k.Year, k.Num)
	default:
		return fmt.Sprintf("%04d", k.Year)
	}
}

// PeriodTotal is the summed amount of all expenses falling into Key.
type PeriodTotal struct {
	Key   PeriodKey
	Total Money
	Count int
}

// Summary holds the monthly, weekly and yearly sums, each ordered by key.
type Summary struct {
	Monthly []PeriodTotal
	Weekly  []PeriodTotal
	Yearly  []PeriodTotal
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	ByCategory []CategoryAmount
}

// BudgetSuggestion is a suggested limit for one category.
type BudgetSuggestion struct {
	Category string
	Limit    Money
}

// BudgetUsage is the share of a budget consumed during one month.
type BudgetUsage struct {
	Category string
	Limit    Money
	Spent    Money
	Percent  float64
}
