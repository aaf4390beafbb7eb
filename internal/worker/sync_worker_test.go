package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
)

type fakeMirror struct {
	failures int
	err      error
	// failOnce fails the first batch holding a record with this description.
	failOnce string

	appended []core.Expense
	replaced []core.Expense
	calls    int
}

func (f *fakeMirror) AppendExpenses(_ context.Context, records []core.Expense) (string, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", f.err
	}
	for _, e := range records {
		if f.failOnce != "" && e.Description == f.failOnce {
			f.failOnce = ""
			return "", errors.New("503 backend error")
		}
	}
	f.appended = append(f.appended, records...)
	return "rows", nil
}

func (f *fakeMirror) ReplaceExpenses(_ context.Context, records []core.Expense) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	f.replaced = append([]core.Expense(nil), records...)
	return nil
}

var testRecords = []core.Expense{
	{Date: core.NewDate(2024, 3, 14), Description: "MILK", Category: "Groceries", Amount: core.Money{Cents: 349}},
	{Date: core.NewDate(2024, 3, 15), Description: "BUS", Category: "Transportation", Amount: core.Money{Cents: 275}},
}

func TestHandleAppendRetriesTransientErrors(t *testing.T) {
	m := &fakeMirror{failures: 2, err: errors.New("503 backend error")}
	w := NewSyncWorker(m, 3, time.Millisecond)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewAppendMessage(testRecords)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.appended) != 2 || m.appended[0] != testRecords[0] || m.appended[1] != testRecords[1] {
		t.Fatalf("unexpected appended records %+v", m.appended)
	}
	if m.calls != 3 {
		t.Fatalf("expected 3 calls (2 failures + 1 batch), got %d", m.calls)
	}
}

func TestHandleAppendRedeliveryDoesNotDuplicate(t *testing.T) {
	m := &fakeMirror{failOnce: "BUS"}
	w := NewSyncWorker(m, 1, 0)
	msg := amqp.NewAppendMessage(testRecords)

	err := w.HandleSyncMessage(context.Background(), msg)
	if err == nil || errors.Is(err, amqp.ErrDrop) {
		t.Fatalf("expected a requeueable error, got %v", err)
	}
	if len(m.appended) != 0 {
		t.Fatalf("failed delivery must not leave rows behind, got %+v", m.appended)
	}

	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(m.appended) != 2 || m.appended[0] != testRecords[0] || m.appended[1] != testRecords[1] {
		t.Fatalf("expected each record exactly once, got %+v", m.appended)
	}
}

func TestHandleAppendGivesUpAfterAttempts(t *testing.T) {
	boom := errors.New("quota exceeded")
	m := &fakeMirror{failures: 10, err: boom}
	w := NewSyncWorker(m, 3, time.Millisecond)

	err := w.HandleSyncMessage(context.Background(), amqp.NewAppendMessage(testRecords))
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error to be returned, got %v", err)
	}
	if errors.Is(err, amqp.ErrDrop) {
		t.Fatalf("transient failures must be requeued, not dropped")
	}
	if m.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", m.calls)
	}
}

func TestHandleAppendDoesNotRetryValidationErrors(t *testing.T) {
	m := &fakeMirror{failures: 10, err: core.ErrInvalidAmount}
	w := NewSyncWorker(m, 5, time.Millisecond)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewAppendMessage(testRecords[:1])); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("validation errors must not be retried, got %d calls", m.calls)
	}
}

func TestHandleReplace(t *testing.T) {
	m := &fakeMirror{failures: 1, err: errors.New("timeout")}
	w := NewSyncWorker(m, 2, time.Millisecond)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewReplaceMessage(testRecords)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.replaced) != 2 {
		t.Fatalf("unexpected replaced records %+v", m.replaced)
	}
}

func TestHandleReplaceWithEmptySet(t *testing.T) {
	m := &fakeMirror{}
	w := NewSyncWorker(m, 1, 0)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewReplaceMessage(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.calls != 1 || len(m.replaced) != 0 {
		t.Fatalf("expected one replace with no records, got calls=%d replaced=%+v", m.calls, m.replaced)
	}
}

func TestHandleInvalidPayloadIsDropped(t *testing.T) {
	m := &fakeMirror{}
	w := NewSyncWorker(m, 3, time.Millisecond)
	msg := &amqp.ExpenseSyncMessage{
		Type:     amqp.MessageAppend,
		Expenses: []amqp.ExpenseDTO{{Date: "not-a-date", Category: "x", AmountCents: 1}},
	}

	if err := w.HandleSyncMessage(context.Background(), msg); !errors.Is(err, amqp.ErrDrop) {
		t.Fatalf("expected ErrDrop, got %v", err)
	}
	if m.calls != 0 {
		t.Fatalf("mirror must not be called for an invalid payload")
	}
}

func TestHandleUnknownTypeIsDropped(t *testing.T) {
	w := NewSyncWorker(&fakeMirror{}, 1, 0)
	msg := &amqp.ExpenseSyncMessage{Type: "delete"}
	if err := w.HandleSyncMessage(context.Background(), msg); !errors.Is(err, amqp.ErrDrop) {
		t.Fatalf("expected ErrDrop, got %v", err)
	}
}
