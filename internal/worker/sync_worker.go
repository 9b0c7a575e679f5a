// Package worker mirrors recorded transactions from SQLite into the
// spreadsheet, driven by AMQP messages with a periodic sweep as backup.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/sheets"
	"finledger/internal/storage"
)

type SyncWorker struct {
	store     *storage.Store
	appender  sheets.TransactionAppender
	batchSize int
}

func NewSyncWorker(store *storage.Store, appender sheets.TransactionAppender, batchSize int) *SyncWorker {
	return &SyncWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleSyncMessage mirrors a single transaction named by an AMQP
// message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)

	t, err := w.store.GetTransaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	return w.mirrorTransaction(ctx, t)
}

// ProcessPending sweeps transactions still marked pending; this is the
// backup path for messages lost between server and queue.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListPendingSyncTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, t := range pending {
		if err := w.mirrorTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction", "id", t.ID, "error", err)
		}
	}
	return nil
}

func (w *SyncWorker) mirrorTransaction(ctx context.Context, t core.Transaction) error {
	ref, err := w.appender.AppendTransaction(ctx, t)
	if err != nil {
		if markErr := w.store.MarkTransactionSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", t.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkTransactionSynced(ctx, t.ID); err != nil {
		// The append worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", t.ID, "error", err)
	}

	slog.InfoContext(ctx, "Mirrored transaction",
		"id", t.ID,
		"sheet_ref", ref,
		"account", t.AccountName,
		"amount", t.Amount.String())

	return nil
}
