// Command seed fills the CSV expense store with random sample expenses.
package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"os"

	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
)

var sampleItems = map[string][]string{
	"Groceries":      {"Supermarket", "Farmers market", "Bakery", "Butcher"},
	"Utilities":      {"Electricity bill", "Water bill", "Internet", "Phone plan"},
	"Entertainment":  {"Cinema", "Concert tickets", "Streaming subscription", "Board game"},
	"Transportation": {"Fuel", "Train ticket", "Taxi", "Parking"},
	"Dining":         {"Pizzeria", "Sushi bar", "Coffee shop", "Burger place"},
	"Shopping":       {"Clothes", "Shoes", "Electronics", "Books"},
}

var sampleCategories = []string{"Groceries", "Utilities", "Entertainment", "Transportation", "Dining", "Shopping"}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	count := flag.Int("n", 100, "number of expenses to generate")
	file := flag.String("file", cfg.ExpenseFile, "CSV expense file to write")
	seed := flag.Uint64("seed", 0, "random seed (0 picks one)")
	replace := flag.Bool("replace", false, "discard existing expenses first")
	flag.Parse()

	logger := cli.SetupLogger(cfg, applog.ComponentSeed)

	if *count < 1 {
		logger.Error("Expense count must be positive", "n", *count)
		os.Exit(1)
	}

	store, err := storage.NewCSVStore(*file)
	if err != nil {
		logger.Error("Failed to open expense file", "error", err, "path", *file)
		os.Exit(1)
	}

	ctx := context.Background()
	var records []core.Expense
	if !*replace {
		if records, err = store.ListExpenses(ctx); err != nil {
			logger.Error("Failed to read expense file", "error", err, "path", *file)
			os.Exit(1)
		}
	}

	s := *seed
	if s == 0 {
		s = rand.Uint64()
	}
	generated := generate(rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)), *count, core.Today())
	records = append(records, generated...)

	if err := store.ReplaceExpenses(ctx, records); err != nil {
		logger.Error("Failed to write expense file", "error", err, "path", *file)
		os.Exit(1)
	}
	logger.Info("Sample expenses written",
		applog.FieldRecords, len(generated),
		"total_records", len(records),
		"path", store.Path(),
		"seed", s)
}

// generate returns n expenses dated within the 365 days before today, with
// amounts between 10.00 and 200.00.
func generate(r *rand.Rand, n int, today core.Date) []core.Expense {
	out := make([]core.Expense, 0, n)
	for i := 0; i < n; i++ {
		category := sampleCategories[r.IntN(len(sampleCategories))]
		items := sampleItems[category]
		out = append(out, core.Expense{
			Date:        core.DateOf(today.AddDate(0, 0, -r.IntN(365))),
			Description: items[r.IntN(len(items))],
			Category:    category,
			Amount:      core.Money{Cents: 1000 + r.Int64N(19001)},
		})
	}
	return out
}
