package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/ocr"
	"expensetracker/internal/sheets/memory"
)

type fakePublisher struct {
	appends  [][]core.Expense
	replaces [][]core.Expense
	err      error
}

func (f *fakePublisher) PublishAppend(_ context.Context, records []core.Expense) error {
	f.appends = append(f.appends, records)
	return f.err
}

func (f *fakePublisher) PublishReplace(_ context.Context, records []core.Expense) error {
	f.replaces = append(f.replaces, records)
	return f.err
}

// countingStore counts ListExpenses calls to observe caching.
type countingStore struct {
	*memory.Store
	lists int
}

func (c *countingStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	c.lists++
	return c.Store.ListExpenses(ctx)
}

// versionedCountingStore reports a version the test can bump to simulate
// another process rewriting the backing file.
type versionedCountingStore struct {
	*countingStore
	version string
}

func (v *versionedCountingStore) Version(context.Context) (string, error) {
	return v.version, nil
}

var fixedToday = core.NewDate(2024, 3, 20)

func newTestService(seed []core.Expense, opts ...Option) (*ExpenseService, *countingStore, *fakePublisher) {
	store := &countingStore{Store: memory.New(seed...)}
	pub := &fakePublisher{}
	opts = append([]Option{
		WithPublisher(pub),
		WithClock(func() core.Date { return fixedToday }),
	}, opts...)
	return NewExpenseService(store, opts...), store, pub
}

func TestAddExpenseDefaultsDateAndPublishes(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(nil)

	ref, err := svc.AddExpense(ctx, core.Expense{Description: " Coffee ", Category: " Dining ", Amount: core.Money{Cents: 350}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ref != "mem:1" {
		t.Fatalf("unexpected ref %q", ref)
	}
	list, _ := store.Store.ListExpenses(ctx)
	if len(list) != 1 || list[0].Date != fixedToday || list[0].Category != "Dining" || list[0].Description != "Coffee" {
		t.Fatalf("unexpected stored record %+v", list)
	}
	if len(pub.appends) != 1 || len(pub.appends[0]) != 1 {
		t.Fatalf("expected one append message, got %+v", pub.appends)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	svc, _, pub := newTestService(nil)
	cases := []struct {
		e    core.Expense
		want error
	}{
		{core.Expense{Category: "Dining"}, core.ErrInvalidAmount},
		{core.Expense{Category: "  ", Amount: core.Money{Cents: 1}}, core.ErrEmptyCategory},
	}
	for _, tc := range cases {
		if _, err := svc.AddExpense(context.Background(), tc.e); !errors.Is(err, tc.want) {
			t.Fatalf("AddExpense(%+v) error = %v, want %v", tc.e, err, tc.want)
		}
	}
	if len(pub.appends) != 0 {
		t.Fatalf("invalid expenses must not be published")
	}
}

func TestAddExpenseSurvivesPublishFailure(t *testing.T) {
	svc, _, pub := newTestService(nil)
	pub.err = errors.New("broker down")
	if _, err := svc.AddExpense(context.Background(), core.Expense{Category: "Dining", Amount: core.Money{Cents: 1}}); err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
}

const receiptText = `SHOP
03/14/24 12:31
ITEM DESCRIPTION QTY PRICE
1 WHOLE MILK 2 $3.49
2 BANANAS 4011 $1.29
TOTAL $4.78
`

func TestImportReceiptText(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(nil)

	res, err := svc.ImportReceiptText(ctx, receiptText, ReceiptOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Expenses) != 2 || len(res.Refs) != 2 {
		t.Fatalf("expected 2 expenses, got %+v", res)
	}
	for _, e := range res.Expenses {
		if e.Category != DefaultReceiptCategory || e.Date != core.NewDate(2024, 3, 14) {
			t.Fatalf("unexpected expense %+v", e)
		}
	}
	list, _ := store.Store.ListExpenses(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(list))
	}
	if len(pub.appends) != 1 || len(pub.appends[0]) != 2 {
		t.Fatalf("expected a single append message with both items, got %+v", pub.appends)
	}
}

func TestImportReceiptCategoryAndFallbackDate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil, WithReceiptCategory("Household"))
	text := "ITEM\n1 SOAP 1 $2.00\n"

	if _, err := svc.ImportReceiptText(ctx, text, ReceiptOptions{}); !errors.Is(err, ErrReceiptNoDate) {
		t.Fatalf("expected ErrReceiptNoDate, got %v", err)
	}

	res, err := svc.ImportReceiptText(ctx, text, ReceiptOptions{Date: core.NewDate(2024, 1, 2)})
	if err != nil {
		t.Fatalf("import with fallback date: %v", err)
	}
	if res.Expenses[0].Category != "Household" || res.Expenses[0].Date != core.NewDate(2024, 1, 2) {
		t.Fatalf("unexpected expense %+v", res.Expenses[0])
	}

	res, err = svc.ImportReceiptText(ctx, "01/05/24\n"+text, ReceiptOptions{Category: "Cleaning", Date: core.NewDate(2024, 1, 2)})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Expenses[0].Category != "Cleaning" || res.Expenses[0].Date != core.NewDate(2024, 1, 5) {
		t.Fatalf("receipt date must win over the fallback: %+v", res.Expenses[0])
	}
}

func TestImportReceiptWithoutItemsStoresNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(nil)
	res, err := svc.ImportReceiptText(ctx, "03/14/24\nTOTAL $9.99\n", ReceiptOptions{})
	if !errors.Is(err, ErrReceiptEmpty) {
		t.Fatalf("expected ErrReceiptEmpty, got %v", err)
	}
	if !res.Receipt.HasDate() {
		t.Fatalf("parsed receipt should still be reported")
	}
	list, _ := store.Store.ListExpenses(ctx)
	if len(list) != 0 || len(pub.appends) != 0 {
		t.Fatalf("nothing should be stored or published")
	}
}

func TestImportReceiptImage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil)
	if _, err := svc.ImportReceiptImage(ctx, []byte("img"), ReceiptOptions{}); !errors.Is(err, ErrNoExtractor) {
		t.Fatalf("expected ErrNoExtractor, got %v", err)
	}

	svc, _, _ = newTestService(nil, WithExtractor(ocr.Static(receiptText)))
	res, err := svc.ImportReceiptImage(ctx, []byte("img"), ReceiptOptions{})
	if err != nil {
		t.Fatalf("import image: %v", err)
	}
	if res.Text != receiptText || len(res.Expenses) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	svc, _, _ = newTestService(nil, WithExtractor(ocr.Static("")))
	if _, err := svc.ImportReceiptImage(ctx, []byte("img"), ReceiptOptions{}); !errors.Is(err, ErrReceiptEmpty) {
		t.Fatalf("failed OCR should read as an empty receipt, got %v", err)
	}
}

func TestListExpensesFilter(t *testing.T) {
	ctx := context.Background()
	seed := []core.Expense{
		{Date: core.NewDate(2024, 1, 1), Description: "Whole Milk", Category: "Groceries", Amount: core.Money{Cents: 349}},
		{Date: core.NewDate(2024, 1, 10), Description: "Pizza", Category: "Dining", Amount: core.Money{Cents: 1200}},
		{Date: core.NewDate(2024, 2, 1), Description: "milkshake", Category: "Dining", Amount: core.Money{Cents: 500}},
		{Date: core.NewDate(2024, 2, 5), Description: "Bus", Category: "Transportation", Amount: core.Money{Cents: 275}},
	}
	svc, _, _ := newTestService(seed)

	cases := []struct {
		name string
		f    Filter
		want int
	}{
		{"no filter", Filter{}, 4},
		{"query case-insensitive", Filter{Query: "MILK"}, 2},
		{"categories", Filter{Categories: []string{"Dining", "Transportation"}}, 3},
		{"inclusive range", Filter{From: core.NewDate(2024, 1, 10), To: core.NewDate(2024, 2, 1)}, 2},
		{"combined", Filter{Query: "milk", Categories: []string{"Dining"}, To: core.NewDate(2024, 2, 1)}, 1},
		{"no match", Filter{Query: "xyz"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ListExpenses(ctx, tc.f)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("expected %d records, got %d: %+v", tc.want, len(got), got)
			}
		})
	}

	dining, _ := svc.ListExpenses(ctx, Filter{Categories: []string{"Dining"}})
	totals := svc.CategoryTotals(dining)
	if len(totals) != 1 || totals[0].Amount.Cents != 1700 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestSummaryIsCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	seed := []core.Expense{{Date: core.NewDate(2024, 1, 1), Category: "Groceries", Amount: core.Money{Cents: 100}}}
	svc, store, _ := newTestService(seed, WithSummaryCache(cache.NewLRUCache[core.Summary](4, time.Minute)))

	first, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if store.lists != 1 {
		t.Fatalf("second summary should be served from cache, store read %d times", store.lists)
	}
	if len(first.Yearly) != 1 || first.Yearly[0].Total.Cents != 100 {
		t.Fatalf("unexpected summary %+v", first)
	}

	if _, err := svc.AddExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 2), Category: "Groceries", Amount: core.Money{Cents: 50}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	after, _ := svc.Summary(ctx)
	if after.Yearly[0].Total.Cents != 150 {
		t.Fatalf("write must invalidate the cached summary, got %+v", after.Yearly)
	}
}

func TestCategoriesRenameAndDelete(t *testing.T) {
	ctx := context.Background()
	seed := []core.Expense{
		{Date: core.NewDate(2024, 1, 1), Category: "Food", Amount: core.Money{Cents: 100}},
		{Date: core.NewDate(2024, 1, 2), Category: "Travel", Amount: core.Money{Cents: 200}},
		{Date: core.NewDate(2024, 1, 3), Category: "Food", Amount: core.Money{Cents: 300}},
	}
	svc, store, pub := newTestService(seed)

	cats, _ := svc.Categories(ctx)
	if len(cats) != 2 || cats[0] != "Food" || cats[1] != "Travel" {
		t.Fatalf("unexpected categories %v", cats)
	}

	n, err := svc.RenameCategory(ctx, "Food", "Groceries")
	if err != nil || n != 2 {
		t.Fatalf("rename: n=%d err=%v", n, err)
	}
	cats, _ = svc.Categories(ctx)
	if len(cats) != 2 || cats[0] != "Groceries" {
		t.Fatalf("unexpected categories after rename %v", cats)
	}
	if len(pub.replaces) != 1 || len(pub.replaces[0]) != 3 {
		t.Fatalf("expected a replace message with all records, got %+v", pub.replaces)
	}

	if _, err := svc.RenameCategory(ctx, "Nope", "X"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if _, err := svc.RenameCategory(ctx, "Travel", " "); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}

	n, err = svc.DeleteCategory(ctx, "Groceries")
	if err != nil || n != 2 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	list, _ := store.Store.ListExpenses(ctx)
	if len(list) != 1 || list[0].Category != "Travel" {
		t.Fatalf("unexpected records after delete %+v", list)
	}
}

func TestSuggestionsAndUsage(t *testing.T) {
	ctx := context.Background()
	seed := []core.Expense{
		{Date: core.NewDate(2024, 3, 5), Category: "Dining", Amount: core.Money{Cents: 10000}},
		{Date: core.NewDate(2024, 2, 20), Category: "Dining", Amount: core.Money{Cents: 5000}},
	}
	svc, _, _ := newTestService(seed)

	sugg, err := svc.Suggestions(ctx, core.Date{})
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(sugg) != 1 || sugg[0].Limit.Cents != 8250 {
		t.Fatalf("unexpected suggestions %+v", sugg)
	}

	usage, err := svc.Usage(ctx, []core.CategoryBudget{{Category: "Dining", Limit: core.Money{Cents: 20000}}}, 2024, 3)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 1 || usage[0].Percent != 50 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	if _, err := svc.Usage(ctx, []core.CategoryBudget{{Category: "Dining"}}, 2024, 3); !errors.Is(err, core.ErrInvalidBudget) {
		t.Fatalf("expected ErrInvalidBudget, got %v", err)
	}
}

func TestMonthOverviewRejectsBadMonth(t *testing.T) {
	svc, _, _ := newTestService(nil)
	if _, err := svc.MonthOverview(context.Background(), 2024, 13); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestBackupUnsupportedOnMemoryStore(t *testing.T) {
	svc, _, _ := newTestService(nil)
	if _, err := svc.Backup(context.Background()); !errors.Is(err, ErrBackupUnsupported) {
		t.Fatalf("expected ErrBackupUnsupported, got %v", err)
	}
}

func TestSummaryCacheFollowsStoreVersion(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New(core.Expense{Date: core.NewDate(2024, 1, 1), Category: "Groceries", Amount: core.Money{Cents: 100}})}
	store := &versionedCountingStore{countingStore: inner, version: "1"}
	svc := NewExpenseService(store, WithSummaryCache(cache.NewLRUCache[core.Summary](4, time.Minute)))

	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := svc.Summary(ctx); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if inner.lists != 1 {
		t.Fatalf("unchanged version should hit the cache, store read %d times", inner.lists)
	}

	// An outside writer replaces the data without going through the service.
	if err := inner.Store.ReplaceExpenses(ctx, []core.Expense{{Date: core.NewDate(2024, 1, 1), Category: "Groceries", Amount: core.Money{Cents: 900}}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	store.version = "2"

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if inner.lists != 2 || sum.Yearly[0].Total.Cents != 900 {
		t.Fatalf("new version must recompute, reads=%d summary=%+v", inner.lists, sum.Yearly)
	}
}
