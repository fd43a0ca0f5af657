package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cobranzas/internal/amqp"
	"cobranzas/internal/core"
	"cobranzas/internal/sheets"
	"cobranzas/internal/storage"
)

// SyncWorker keeps the spreadsheet mirror of the ledger up to date. It
// consumes sync/delete events from AMQP and additionally rescans the
// pending rows on a timer, so events missed while the worker was down are
// not lost.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.MovementWriter
	deleter   sheets.MovementDeleter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.MovementWriter, deleter sheets.MovementDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage exports one movement row to the sheet.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.MovementSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "movement_id", msg.ID, "version", msg.Version)

	if err := w.syncMovement(ctx, msg.ID); err != nil {
		// A row deleted between publish and consume is not a failure.
		if errors.Is(err, core.ErrMovementNotFound) {
			slog.WarnContext(ctx, "Movement vanished before sync", "movement_id", msg.ID)
			return nil
		}
		return err
	}
	return nil
}

// HandleDeleteMessage removes one movement row from the sheet.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.MovementDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "movement_id", msg.ID)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No sheet deleter configured, skipping", "movement_id", msg.ID)
		return nil
	}
	if err := w.deleter.Delete(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete movement row: %w", err)
	}
	return nil
}

// ProcessPendingMovements exports up to batchSize rows still marked
// pending. Called periodically as a safety net behind the queue.
func (w *SyncWorker) ProcessPendingMovements(ctx context.Context) error {
	pending, err := w.storage.PendingSyncMovements(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("load pending movements: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending movements", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.syncMovement(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Pending movement sync failed", "movement_id", p.ID, "error", err)
		}
	}
	return nil
}

func (w *SyncWorker) syncMovement(ctx context.Context, id int64) error {
	m, err := w.storage.GetMovementByID(ctx, id)
	if err != nil {
		return err
	}

	user, err := w.storage.GetUserByID(ctx, m.UserID)
	if err != nil {
		return fmt.Errorf("load movement owner: %w", err)
	}

	row := sheets.Row{
		MovementID:    m.ID,
		Username:      user.Username,
		Type:          string(m.Type),
		Description:   m.Description,
		PaymentMethod: m.PaymentMethod,
		Amount:        m.Amount.String(),
		CreatedAt:     m.CreatedAt,
		Version:       m.Version,
	}

	if err := w.writer.Upsert(ctx, row); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "movement_id", id, "error", markErr)
		}
		return fmt.Errorf("export movement: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark movement synced: %w", err)
	}
	return nil
}
