package receipt

import (
	"testing"

	"expensetracker/internal/core"
)

const sampleReceipt = `WALMART SUPERCENTER
STORE 1234 ST# 05487
03/14/24 12:31:08
ITEM DESCRIPTION QTY PRICE
1 WHOLE MILK 2 $3.49
2 BANANAS 4011 $1.29
3 WHITE BREAD 1 $2.50
SUBTOTAL $7.28
TOTAL $7.78
`

func TestParseSampleReceipt(t *testing.T) {
	got := Parse(sampleReceipt)

	if got.Date != core.NewDate(2024, 3, 14) {
		t.Fatalf("unexpected date: %v", got.Date)
	}
	want := []Item{
		{Description: "WHOLE MILK", Amount: core.Money{Cents: 349}},
		{Description: "BANANAS", Amount: core.Money{Cents: 129}},
		{Description: "WHITE BREAD", Amount: core.Money{Cents: 250}},
	}
	if len(got.Items) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(got.Items), got.Items)
	}
	for i := range want {
		if got.Items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, got.Items[i], want[i])
		}
	}
}

func TestParseWithoutItemMarkerHasNoItems(t *testing.T) {
	texts := []string{
		"",
		"1 MILK 2 $3.49\n2 EGGS 12 $4.00",
		"03/14/24\nTOTAL $9.99",
		"item 1 MILK 2 $3.49", // marker is case sensitive
	}
	for _, text := range texts {
		if got := Parse(text); len(got.Items) != 0 {
			t.Errorf("Parse(%q) returned items %+v", text, got.Items)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		name string
		text string
		want core.Date
	}{
		{"plain", "Date 01/15/24", core.NewDate(2024, 1, 15)},
		{"nineties", "12/31/99", core.NewDate(1999, 12, 31)},
		{"pivot low", "01/01/69", core.NewDate(1969, 1, 1)},
		{"pivot high", "06/30/68", core.NewDate(2068, 6, 30)},
		{"first match wins", "02/03/21 then 04/05/22", core.NewDate(2021, 2, 3)},
		{"four digit year prefix", "12/25/2024", core.NewDate(2020, 12, 25)},
		{"no date", "no date here 1/2/3", core.Date{}},
		{"impossible first match", "13/45/22 later 01/02/24", core.Date{}},
		{"february 30", "02/30/24", core.Date{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			if got.Date != tc.want {
				t.Fatalf("date = %v, want %v", got.Date, tc.want)
			}
			if got.HasDate() == tc.want.IsEmpty() {
				t.Fatalf("HasDate mismatch for %v", got.Date)
			}
		})
	}
}

func TestParseSkipsLinesBeforeAndIncludingMarker(t *testing.T) {
	text := "1 HEADER LINE 9 $99.99\nITEM LIST $5.00\n1 SOAP 3 $1.25\nITEMS CONTINUED\n2 RAG 1 $0.75\n"
	got := Parse(text)
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", got.Items)
	}
	if got.Items[0].Description != "SOAP" || got.Items[0].Amount.Cents != 125 {
		t.Fatalf("unexpected first item %+v", got.Items[0])
	}
	if got.Items[1].Description != "RAG" || got.Items[1].Amount.Cents != 75 {
		t.Fatalf("unexpected second item %+v", got.Items[1])
	}
}

func TestParsePositionalPairingAcrossLines(t *testing.T) {
	text := "ITEM\n1 ORGANIC APPLES 3\n$4.50\n2 PEARS 2\n"
	got := Parse(text)
	if len(got.Items) != 1 {
		t.Fatalf("expected min(2 descriptions, 1 amount) = 1 item, got %+v", got.Items)
	}
	if got.Items[0].Description != "ORGANIC APPLES" || got.Items[0].Amount.Cents != 450 {
		t.Fatalf("unexpected item: %+v", got.Items[0])
	}
}

func TestParsePerLinePairing(t *testing.T) {
	p := NewParser(WithPairing(PairPerLine))
	text := "ITEM\n1 ORGANIC APPLES 3\n$4.50\n2 PEARS 2 $1.10\nTOTAL $5.60\n"
	got := p.Parse(text)
	if len(got.Items) != 1 {
		t.Fatalf("expected only the line with both fields, got %+v", got.Items)
	}
	if got.Items[0].Description != "PEARS" || got.Items[0].Amount.Cents != 110 {
		t.Fatalf("unexpected item: %+v", got.Items[0])
	}
}

func TestParseDropsZeroAmounts(t *testing.T) {
	got := Parse("ITEM\n1 FREEBIE 1 $0.00\n2 GUM 1 $0.99\n")
	// FREEBIE keeps its description, so positional pairing shifts GUM's amount onto it.
	if len(got.Items) != 1 || got.Items[0].Amount.Cents != 99 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
}

func TestParseToleratesCRLF(t *testing.T) {
	got := Parse("01/02/24\r\nITEM\r\n1 TEA 2 $2.00\r\n")
	if len(got.Items) != 1 || got.Items[0].Description != "TEA" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
}

func TestExpensesShareCategoryAndDate(t *testing.T) {
	r := ParsedReceipt{Items: []Item{
		{Description: "A", Amount: core.Money{Cents: 100}},
		{Description: "B", Amount: core.Money{Cents: 200}},
	}}
	day := core.NewDate(2024, 5, 1)
	got := r.Expenses("Groceries", day)
	if len(got) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(got))
	}
	for _, e := range got {
		if e.Category != "Groceries" || e.Date != day {
			t.Fatalf("unexpected expense %+v", e)
		}
		if err := e.Validate(); err != nil {
			t.Fatalf("expense should be valid: %v", err)
		}
	}
}
