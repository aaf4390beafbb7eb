package http

import "expensetracker/internal/core"

// Wire shapes. Amounts are sent both as a two-decimal string and as cents.

type expenseJSON struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
}

type amountJSON struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
}

type periodJSON struct {
	Period     string `json:"period"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

type summaryJSON struct {
	Monthly []periodJSON `json:"monthly"`
	Weekly  []periodJSON `json:"weekly"`
	Yearly  []periodJSON `json:"yearly"`
}

type overviewJSON struct {
	Year       int          `json:"year"`
	Month      int          `json:"month"`
	Total      string       `json:"total"`
	TotalCents int64        `json:"total_cents"`
	ByCategory []amountJSON `json:"by_category"`
}

type suggestionJSON struct {
	Category   string `json:"category"`
	Limit      string `json:"limit"`
	LimitCents int64  `json:"limit_cents"`
}

type usageJSON struct {
	Category   string  `json:"category"`
	Limit      string  `json:"limit"`
	Spent      string  `json:"spent"`
	SpentCents int64   `json:"spent_cents"`
	Percent    float64 `json:"percent"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		Date:        e.Date.String(),
		Description: e.Description,
		Category:    e.Category,
		Amount:      e.Amount.Decimal(),
		AmountCents: e.Amount.Cents,
	}
}

func toExpensesJSON(records []core.Expense) []expenseJSON {
	out := make([]expenseJSON, 0, len(records))
	for _, e := range records {
		out = append(out, toExpenseJSON(e))
	}
	return out
}

func toAmountsJSON(items []core.CategoryAmount) []amountJSON {
	out := make([]amountJSON, 0, len(items))
	for _, c := range items {
		out = append(out, amountJSON{Name: c.Name, Amount: c.Amount.Decimal(), AmountCents: c.Amount.Cents})
	}
	return out
}

func toPeriodsJSON(totals []core.PeriodTotal) []periodJSON {
	out := make([]periodJSON, 0, len(totals))
	for _, p := range totals {
		out = append(out, periodJSON{
			Period:     p.Key.String(),
			Total:      p.Total.Decimal(),
			TotalCents: p.Total.Cents,
			Count:      p.Count,
		})
	}
	return out
}

func toOverviewJSON(ov core.MonthOverview) overviewJSON {
	return overviewJSON{
		Year:       ov.Year,
		Month:      ov.Month,
		Total:      ov.Total.Decimal(),
		TotalCents: ov.Total.Cents,
		ByCategory: toAmountsJSON(ov.ByCategory),
	}
}
