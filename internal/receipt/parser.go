// Package receipt turns raw OCR text of a store receipt into a transaction
// date and a list of (description, amount) items.
//
// Parsing never fails: a missing date leaves ParsedReceipt.Date empty and a
// text without an item section yields no items.
package receipt

import (
	"regexp"
	"strings"
	"time"

	"expensetracker/internal/core"
)

// ItemMarker opens the item section of a receipt. Lines before the first
// line starting with it are ignored.
const ItemMarker = "ITEM"

const receiptDateLayout = "01/02/06"

var (
	dateRe   = regexp.MustCompile(`\d{2}/\d{2}/\d{2}`)
	itemRe   = regexp.MustCompile(`^(\d+)\s+(.+?)\s+\d+`)
	amountRe = regexp.MustCompile(`\$(\d+\.\d{2})`)
)

// Pairing selects how descriptions and amounts are associated into items.
type Pairing int

const (
	// PairPositional matches the i-th description found in the item section
	// with the i-th amount, up to the shorter of the two sequences.
	PairPositional Pairing = iota
	// PairPerLine only emits an item when a single line carries both a
	// description and an amount.
	PairPerLine
)

// Item is one purchased line of a receipt.
type Item struct {
	Description string
	Amount      core.Money
}

// ParsedReceipt is the transient result of parsing one receipt.
type ParsedReceipt struct {
	// Date is empty when no MM/DD/YY date was found.
	Date  core.Date
	Items []Item
}

// HasDate reports whether a transaction date was detected.
func (r ParsedReceipt) HasDate() bool {
	return !r.Date.IsEmpty()
}

// Expenses converts the items into expense records sharing one category and date.
func (r ParsedReceipt) Expenses(category string, date core.Date) []core.Expense {
	out := make([]core.Expense, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, core.Expense{
			Date:        date,
			Description: it.Description,
			Category:    category,
			Amount:      it.Amount,
		})
	}
	return out
}

// Parser extracts receipts from OCR text.
type Parser struct {
	pairing Pairing
}

// Option configures a Parser.
type Option func(*Parser)

// WithPairing sets the description/amount pairing strategy.
func WithPairing(p Pairing) Option {
	return func(ps *Parser) { ps.pairing = p }
}

// NewParser returns a parser using positional pairing unless configured otherwise.
func NewParser(opts ...Option) *Parser {
	p := &Parser{pairing: PairPositional}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses raw OCR text with positional pairing.
func Parse(raw string) ParsedReceipt {
	return defaultParser.Parse(raw)
}

// Parse extracts the date and the items of raw OCR text.
func (p *Parser) Parse(raw string) ParsedReceipt {
	out := ParsedReceipt{Date: parseDate(raw)}

	var (
		descriptions []string
		amounts      []core.Money
		inItems      bool
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ItemMarker) {
			inItems = true
			continue
		}
		if !inItems {
			continue
		}

		desc, hasDesc := lineDescription(line)
		amount, hasAmount := lineAmount(line)

		if p.pairing == PairPerLine {
			if hasDesc && hasAmount {
				out.Items = append(out.Items, Item{Description: desc, Amount: amount})
			}
			continue
		}
		if hasDesc {
			descriptions = append(descriptions, desc)
		}
		if hasAmount {
			amounts = append(amounts, amount)
		}
	}

	if p.pairing == PairPositional {
		n := min(len(descriptions), len(amounts))
		for i := 0; i < n; i++ {
			out.Items = append(out.Items, Item{Description: descriptions[i], Amount: amounts[i]})
		}
	}
	return out
}

// parseDate only considers the first MM/DD/YY match; an impossible date
// such as 13/45/22 leaves the result empty.
func parseDate(raw string) core.Date {
	m := dateRe.FindString(raw)
	if m == "" {
		return core.Date{}
	}
	t, err := time.Parse(receiptDateLayout, m)
	if err != nil {
		return core.Date{}
	}
	return core.DateOf(t)
}

func lineDescription(line string) (string, bool) {
	m := itemRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[2]), true
}

func lineAmount(line string) (core.Money, bool) {
	m := amountRe.FindStringSubmatch(line)
	if m == nil {
		return core.Money{}, false
	}
	amount, err := core.ParseMoney(m[1])
	if err != nil {
		// $0.00 is not a positive amount
		return core.Money{}, false
	}
	return amount, true
}
