package memory

import (
	"context"
	"fmt"
	"sync"

	"expensetracker/internal/core"
)

// Store keeps expenses in process memory. It is used by tests and by the
// "memory" backend for demos.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

// New returns a store seeded with the valid records of seed.
func New(seed ...core.Expense) *Store {
	s := &Store{}
	for _, e := range seed {
		if e.Validate() == nil {
			s.items = append(s.items, e)
		}
	}
	return s
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ListExpenses returns a copy of the stored records.
func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...), nil
}

// ReplaceExpenses swaps the stored records for records.
func (s *Store) ReplaceExpenses(_ context.Context, records []core.Expense) error {
	for i, e := range records {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.Expense(nil), records...)
	return nil
}
