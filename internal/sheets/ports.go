package sheets

import (
	"context"

	"expensetracker/internal/core"
)

// Ports for expense stores. Every backend is a flat table of records that
// is either appended to or rewritten wholesale.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseBatchWriter appends several records in one all-or-nothing write.
	ExpenseBatchWriter interface {
		AppendExpenses(ctx context.Context, records []core.Expense) (rangeRef string, err error)
	}

	// ExpenseLister returns every stored record in file order.
	ExpenseLister interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	// ExpenseReplacer rewrites the whole table, used by category rename and delete.
	ExpenseReplacer interface {
		ReplaceExpenses(ctx context.Context, records []core.Expense) error
	}

	ExpenseStore interface {
		ExpenseWriter
		ExpenseLister
		ExpenseReplacer
	}
)
