package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/ocr"
	"expensetracker/internal/receipt"
	"expensetracker/internal/sheets"
)

const (
	// DefaultReceiptCategory is assigned to receipt items when the caller
	// does not pick one.
	DefaultReceiptCategory = "Groceries"

	summaryCacheKey = "summary"
)

var (
	ErrReceiptEmpty      = errors.New("no items found on receipt")
	ErrReceiptNoDate     = errors.New("no date found on receipt")
	ErrNoExtractor       = errors.New("no text extractor configured")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrBackupUnsupported = errors.New("backend does not support backups")
)

// SyncPublisher forwards store changes to the remote mirror.
type SyncPublisher interface {
	PublishAppend(ctx context.Context, records []core.Expense) error
	PublishReplace(ctx context.Context, records []core.Expense) error
}

// ExpenseService is the presentation boundary: it wires the store, the
// receipt pipeline, aggregation and budgeting together.
type ExpenseService struct {
	store           sheets.ExpenseStore
	publisher       SyncPublisher
	summaries       cache.Cache[core.Summary]
	parser          *receipt.Parser
	extractor       ocr.Extractor
	advisor         *BudgetAdvisor
	agg             Aggregator
	receiptCategory string
	today           func() core.Date
}

// Option configures an ExpenseService.
type Option func(*ExpenseService)

func WithPublisher(p SyncPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithSummaryCache(c cache.Cache[core.Summary]) Option {
	return func(s *ExpenseService) { s.summaries = c }
}

func WithParser(p *receipt.Parser) Option {
	return func(s *ExpenseService) { s.parser = p }
}

func WithExtractor(e ocr.Extractor) Option {
	return func(s *ExpenseService) { s.extractor = e }
}

func WithAdvisor(a *BudgetAdvisor) Option {
	return func(s *ExpenseService) { s.advisor = a }
}

func WithReceiptCategory(c string) Option {
	return func(s *ExpenseService) {
		if strings.TrimSpace(c) != "" {
			s.receiptCategory = strings.TrimSpace(c)
		}
	}
}

// WithClock overrides the source of "today", used for default dates.
func WithClock(today func() core.Date) Option {
	return func(s *ExpenseService) { s.today = today }
}

func NewExpenseService(store sheets.ExpenseStore, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:           store,
		parser:          receipt.NewParser(),
		advisor:         NewBudgetAdvisor(DefaultBudgetWindowMonths, DefaultBudgetHeadroom),
		receiptCategory: DefaultReceiptCategory,
		today:           core.Today,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the service's current calendar day.
func (s *ExpenseService) Today() core.Date { return s.today() }

// AddExpense stores one expense; an unset date means today.
func (s *ExpenseService) AddExpense(ctx context.Context, e core.Expense) (string, error) {
	if e.Date.IsEmpty() {
		e.Date = s.today()
	}
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return "", err
	}

	ref, err := s.store.Append(ctx, e)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}
	s.invalidate()
	s.publishAppend(ctx, []core.Expense{e})

	slog.InfoContext(ctx, "Expense added",
		"ref", ref,
		"category", e.Category,
		"amount_cents", e.Amount.Cents)
	return ref, nil
}

// ReceiptOptions controls how parsed receipt items are stored.
type ReceiptOptions struct {
	// Category for every item; empty means the configured receipt category.
	Category string
	// Date is used when the receipt carries no date of its own.
	Date core.Date
}

// ReceiptResult reports what a receipt import produced.
type ReceiptResult struct {
	Text     string
	Receipt  receipt.ParsedReceipt
	Expenses []core.Expense
	Refs     []string
}

// ImportReceiptImage runs OCR on img and imports the resulting text.
func (s *ExpenseService) ImportReceiptImage(ctx context.Context, img []byte, opts ReceiptOptions) (ReceiptResult, error) {
	if s.extractor == nil {
		return ReceiptResult{}, ErrNoExtractor
	}
	return s.ImportReceiptText(ctx, s.extractor.ExtractText(ctx, img), opts)
}

// ImportReceiptText parses OCR text and appends one expense per item.
// Nothing is stored unless the receipt has items and a date.
func (s *ExpenseService) ImportReceiptText(ctx context.Context, text string, opts ReceiptOptions) (ReceiptResult, error) {
	parsed := s.parser.Parse(text)
	res := ReceiptResult{Text: text, Receipt: parsed}

	if len(parsed.Items) == 0 {
		return res, ErrReceiptEmpty
	}
	date := parsed.Date
	if date.IsEmpty() {
		date = opts.Date
	}
	if date.IsEmpty() {
		return res, ErrReceiptNoDate
	}
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = s.receiptCategory
	}

	for _, e := range parsed.Expenses(category, date) {
		ref, err := s.store.Append(ctx, e)
		if err != nil {
			s.invalidate()
			s.publishAppend(ctx, res.Expenses)
			return res, fmt.Errorf("save receipt item %q: %w", e.Description, err)
		}
		res.Expenses = append(res.Expenses, e)
		res.Refs = append(res.Refs, ref)
	}
	s.invalidate()
	s.publishAppend(ctx, res.Expenses)

	slog.InfoContext(ctx, "Receipt imported",
		"items", len(res.Expenses),
		"date", date.String(),
		"category", category)
	return res, nil
}

// Filter selects records for ListExpenses. Zero fields do not filter.
type Filter struct {
	// Query is matched case-insensitively against the description.
	Query      string
	Categories []string
	From, To   core.Date
}

func (f Filter) match(e core.Expense) bool {
	if q := strings.TrimSpace(f.Query); q != "" &&
		!strings.Contains(strings.ToLower(e.Description), strings.ToLower(q)) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, e.Category) {
		return false
	}
	if !f.From.IsEmpty() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsEmpty() && e.Date.After(f.To.Time) {
		return false
	}
	return true
}

// ListExpenses returns the stored records matching f in store order.
func (s *ExpenseService) ListExpenses(ctx context.Context, f Filter) ([]core.Expense, error) {
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// CategoryTotals sums records per category.
func (s *ExpenseService) CategoryTotals(records []core.Expense) []core.CategoryAmount {
	return s.agg.ByCategory(records, core.Date{}, core.Date{})
}

// versionedStore is implemented by stores that can tell when their backing
// data changed outside this process.
type versionedStore interface {
	Version(ctx context.Context) (string, error)
}

// Summary returns monthly, weekly and yearly totals over all records.
// Cached results are keyed on the store version when the store has one.
func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	key, cacheable := s.summaryKey(ctx)
	if cacheable {
		if sum, ok := s.summaries.Get(key); ok {
			return sum, nil
		}
	}
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list expenses: %w", err)
	}
	sum := s.agg.Aggregate(all)
	if cacheable {
		s.summaries.Set(key, sum)
	}
	return sum, nil
}

func (s *ExpenseService) summaryKey(ctx context.Context) (string, bool) {
	if s.summaries == nil {
		return "", false
	}
	v, ok := s.store.(versionedStore)
	if !ok {
		return summaryCacheKey, true
	}
	version, err := v.Version(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Store version unavailable, bypassing summary cache", "error", err)
		return "", false
	}
	return summaryCacheKey + ":" + version, true
}

// MonthOverview returns the month total with its per-category split.
func (s *ExpenseService) MonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("invalid month %d", month)
	}
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("list expenses: %w", err)
	}
	return s.agg.MonthOverview(all, year, month), nil
}

// Categories returns the distinct categories found in the store.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return Categories(all), nil
}

// RenameCategory moves every record of from to category to and returns the
// number of records changed.
func (s *ExpenseService) RenameCategory(ctx context.Context, from, to string) (int, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if to == "" {
		return 0, core.ErrEmptyCategory
	}
	return s.rewrite(ctx, from, func(e core.Expense) (core.Expense, bool) {
		e.Category = to
		return e, true
	})
}

// DeleteCategory removes every record of the category and returns how many
// were removed.
func (s *ExpenseService) DeleteCategory(ctx context.Context, name string) (int, error) {
	return s.rewrite(ctx, strings.TrimSpace(name), func(e core.Expense) (core.Expense, bool) {
		return e, false
	})
}

func (s *ExpenseService) rewrite(ctx context.Context, category string, fn func(core.Expense) (core.Expense, bool)) (int, error) {
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(all))
	changed := 0
	for _, e := range all {
		if e.Category != category {
			out = append(out, e)
			continue
		}
		changed++
		if ne, keep := fn(e); keep {
			out = append(out, ne)
		}
	}
	if changed == 0 {
		return 0, ErrCategoryNotFound
	}
	if err := s.store.ReplaceExpenses(ctx, out); err != nil {
		return 0, fmt.Errorf("rewrite expenses: %w", err)
	}
	s.invalidate()
	if s.publisher != nil {
		if err := s.publisher.PublishReplace(ctx, out); err != nil {
			slog.ErrorContext(ctx, "Failed to publish replace message", "error", err)
		}
	}
	slog.InfoContext(ctx, "Category rewritten", "category", category, "records", changed)
	return changed, nil
}

// Suggestions returns a budget suggestion for every known category.
func (s *ExpenseService) Suggestions(ctx context.Context, asOf core.Date) ([]core.BudgetSuggestion, error) {
	if asOf.IsEmpty() {
		asOf = s.today()
	}
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return s.advisor.SuggestAll(all, asOf), nil
}

// Usage computes the month's budget usage for each budget.
func (s *ExpenseService) Usage(ctx context.Context, budgets []core.CategoryBudget, year, month int) ([]core.BudgetUsage, error) {
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return s.advisor.UsageReport(budgets, all, year, month)
}

// Backup snapshots the store when the backend supports it and returns the
// snapshot location.
func (s *ExpenseService) Backup(ctx context.Context) (string, error) {
	b, ok := s.store.(interface {
		Backup(ctx context.Context) (string, error)
	})
	if !ok {
		return "", ErrBackupUnsupported
	}
	return b.Backup(ctx)
}

func (s *ExpenseService) invalidate() {
	if s.summaries != nil {
		s.summaries.Clear()
	}
}

func (s *ExpenseService) publishAppend(ctx context.Context, records []core.Expense) {
	if s.publisher == nil || len(records) == 0 {
		return
	}
	if err := s.publisher.PublishAppend(ctx, records); err != nil {
		// the record is stored locally; the mirror catches up on the next replace
		slog.ErrorContext(ctx, "Failed to publish sync message", "records", len(records), "error", err)
	}
}
