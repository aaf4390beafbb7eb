package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
)

// Mirror is the remote table kept in sync with the local expense store.
// An append message is written as one batch so a requeued message never
// leaves part of it behind.
type Mirror interface {
	sheets.ExpenseBatchWriter
	sheets.ExpenseReplacer
}

// SyncWorker applies expense sync messages to a mirror, retrying failed writes.
type SyncWorker struct {
	mirror   Mirror
	attempts uint
	delay    time.Duration
}

func NewSyncWorker(mirror Mirror, attempts int, delay time.Duration) *SyncWorker {
	if attempts < 1 {
		attempts = 1
	}
	return &SyncWorker{mirror: mirror, attempts: uint(attempts), delay: delay}
}

// HandleSyncMessage processes a single expense sync message from AMQP.
// Messages with an invalid payload wrap amqp.ErrDrop so they are not requeued.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	records, err := msg.Records()
	if err != nil {
		return fmt.Errorf("%w: %v", amqp.ErrDrop, err)
	}

	slog.InfoContext(ctx, "Processing sync message",
		"type", msg.Type,
		"records", len(records),
		"timestamp", msg.Timestamp)

	switch msg.Type {
	case amqp.MessageAppend:
		var ref string
		err := w.withRetry(ctx, "append", func() error {
			var err error
			ref, err = w.mirror.AppendExpenses(ctx, records)
			return err
		})
		if err != nil {
			return fmt.Errorf("append to mirror: %w", err)
		}
		slog.InfoContext(ctx, "Successfully synced expenses",
			"sheets_ref", ref,
			"records", len(records))
	case amqp.MessageReplace:
		err := w.withRetry(ctx, "replace", func() error {
			return w.mirror.ReplaceExpenses(ctx, records)
		})
		if err != nil {
			return fmt.Errorf("replace mirror: %w", err)
		}
		slog.InfoContext(ctx, "Successfully replaced mirrored expenses", "records", len(records))
	default:
		return fmt.Errorf("%w: unknown message type %q", amqp.ErrDrop, msg.Type)
	}
	return nil
}

func (w *SyncWorker) withRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(w.attempts),
		retry.Delay(w.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			slog.WarnContext(ctx, "Mirror write failed, retrying",
				"op", op,
				"attempt", n+1,
				"error", err)
		}),
		retry.LastErrorOnly(true),
	)
}

// Validation failures never succeed on a second try.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
