package google

import (
	"fmt"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

func toRow(e core.Expense) []any {
	return []any{e.Date.String(), e.Description, e.Category, e.Amount.Float()}
}

// parseRows converts a values matrix (as returned by the Sheets API with
// UNFORMATTED_VALUE) into expenses. The first row is skipped when it is the
// header. It returns the parsed records and the number of rows dropped.
func parseRows(values [][]any) ([]core.Expense, int) {
	var out []core.Expense
	skipped := 0
	for i, row := range values {
		cols := toStrings(row)
		if i == 0 && len(cols) > 0 && strings.EqualFold(cols[0], "date") {
			continue
		}
		if isBlank(cols) {
			continue
		}
		e, err := parseRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func parseRow(row []any) (core.Expense, error) {
	if len(row) < 4 {
		return core.Expense{}, fmt.Errorf("expected 4 columns, got %d", len(row))
	}
	cols := toStrings(row)
	date, err := storage.ParseDate(cols[0])
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := parseAmount(row[3])
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Date:        date,
		Description: cols[1],
		Category:    cols[2],
		Amount:      amount,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// parseAmount accepts the number the API returns for numeric cells and
// falls back to decimal text for cells stored as strings.
func parseAmount(v any) (core.Money, error) {
	switch n := v.(type) {
	case float64:
		return core.MoneyFromFloat(n), nil
	case int:
		return core.Money{Cents: int64(n) * 100}, nil
	case int64:
		return core.Money{Cents: n * 100}, nil
	default:
		return core.ParseMoney(strings.TrimSpace(fmt.Sprint(v)))
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
