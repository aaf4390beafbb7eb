package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

// MessageType tells the sync worker how to apply a message to the mirror.
type MessageType string

const (
	// MessageAppend carries newly added records.
	MessageAppend MessageType = "append"
	// MessageReplace carries the full record set after a rename or delete.
	MessageReplace MessageType = "replace"
)

// ExpenseDTO is the wire form of one expense record.
type ExpenseDTO struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
}

// ExpenseSyncMessage describes a change to mirror to Google Sheets.
type ExpenseSyncMessage struct {
	Type      MessageType  `json:"type"`
	Expenses  []ExpenseDTO `json:"expenses"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewAppendMessage creates a message adding records to the mirror.
func NewAppendMessage(records []core.Expense) *ExpenseSyncMessage {
	return newMessage(MessageAppend, records)
}

// NewReplaceMessage creates a message overwriting the mirror with records.
func NewReplaceMessage(records []core.Expense) *ExpenseSyncMessage {
	return newMessage(MessageReplace, records)
}

func newMessage(t MessageType, records []core.Expense) *ExpenseSyncMessage {
	dtos := make([]ExpenseDTO, 0, len(records))
	for _, e := range records {
		dtos = append(dtos, ExpenseDTO{
			Date:        e.Date.String(),
			Description: e.Description,
			Category:    e.Category,
			AmountCents: e.Amount.Cents,
		})
	}
	return &ExpenseSyncMessage{Type: t, Expenses: dtos, Timestamp: time.Now()}
}

// Records converts the payload back into validated expenses.
func (m *ExpenseSyncMessage) Records() ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(m.Expenses))
	for i, d := range m.Expenses {
		t, err := time.Parse(core.DateLayout, d.Date)
		if err != nil {
			return nil, fmt.Errorf("expense %d: invalid date %q", i, d.Date)
		}
		e := core.Expense{
			Date:        core.DateOf(t),
			Description: d.Description,
			Category:    d.Category,
			Amount:      core.Money{Cents: d.AmountCents},
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseSyncMessageFromJSON decodes a message and rejects unknown types.
func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case MessageAppend, MessageReplace:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
