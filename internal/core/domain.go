package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly Period = "monthly"
	Weekly  Period = "weekly"
	Yearly  Period = "yearly"
)

// DateLayout is the calendar-day layout used by stores and the API.
const DateLayout = "2006-01-02"

type (
	// Period names an aggregation granularity.
	Period string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is one logged transaction. Records are never edited in place:
	// an edit is a delete followed by a re-insert.
	Expense struct {
		Date        Date
		Description string
		Category    string
		Amount      Money
	}

	// CategoryBudget is a spending limit for one category during one
	// budgeting session. It is not persisted.
	CategoryBudget struct {
		Category string
		Limit    Money
	}
)

var (
	ErrZeroDate      = errors.New("date cannot be zero")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidBudget = errors.New("invalid budget: limit must be positive")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, dropping time-of-day and zone offset.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// IsEmpty reports whether the date is unset.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddMonths shifts the date by n calendar months, clamping the day to the
// last day of the target month (31 May - 3 months = 28/29 Feb).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

// Between reports whether d lies in the inclusive day range [from, to].
func (d Date) Between(from, to Date) bool {
	return !d.Before(from.Time) && !d.After(to.Time)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Validate checks that the budget limit can be used as a divisor.
func (b CategoryBudget) Validate() error {
	if b.Limit.Cents <= 0 {
		return ErrInvalidBudget
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
