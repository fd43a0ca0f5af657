package services

import (
	"context"
	"fmt"
	"log/slog"

	"cobranzas/internal/core"
	"cobranzas/internal/storage"
)

// EventPublisher publishes movement sync events for the export worker.
// The AMQP client implements it; a nil publisher disables export.
type EventPublisher interface {
	PublishMovementSync(ctx context.Context, id, version int64) error
	PublishMovementDelete(ctx context.Context, id int64) error
}

// MovementService is the ledger store: it validates movements, applies
// them to SQLite and publishes best-effort sync events. A broker outage
// never fails the user's request; the worker's periodic rescan covers the
// gap.
type MovementService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
}

func NewMovementService(storage *storage.SQLiteRepository, publisher EventPublisher) *MovementService {
	return &MovementService{storage: storage, publisher: publisher}
}

// Create validates and persists a new movement for userID. Validation
// failures persist nothing.
func (s *MovementService) Create(ctx context.Context, userID int64, m core.Movement) (int64, error) {
	m.UserID = userID
	if err := m.Validate(); err != nil {
		return 0, err
	}

	id, err := s.storage.InsertMovement(ctx, m)
	if err != nil {
		return 0, fmt.Errorf("create movement: %w", err)
	}

	slog.InfoContext(ctx, "Movement created",
		"movement_id", id,
		"user_id", userID,
		"movement_type", string(m.Type),
		"amount", m.Amount.String())

	s.publishSync(ctx, id, 1)
	return id, nil
}

// List returns the user's movements, most recent first.
func (s *MovementService) List(ctx context.Context, userID int64) ([]core.Movement, error) {
	return s.storage.ListMovements(ctx, userID)
}

// Get fetches a movement for edit, scoped to the owner.
func (s *MovementService) Get(ctx context.Context, userID, id int64) (*core.Movement, error) {
	return s.storage.GetMovement(ctx, userID, id)
}

// Update validates and applies an edit. It reports false without error
// when the id does not exist or belongs to another user.
func (s *MovementService) Update(ctx context.Context, userID, id int64, m core.Movement) (bool, error) {
	m.UserID = userID
	if err := m.Validate(); err != nil {
		return false, err
	}

	version, changed, err := s.storage.UpdateMovement(ctx, userID, id, m)
	if err != nil {
		return false, fmt.Errorf("update movement: %w", err)
	}
	if changed {
		slog.InfoContext(ctx, "Movement updated", "movement_id", id, "user_id", userID, "version", version)
		s.publishSync(ctx, id, version)
	}
	return changed, nil
}

// Delete removes the owner's movement; false when nothing matched.
func (s *MovementService) Delete(ctx context.Context, userID, id int64) (bool, error) {
	removed, err := s.storage.DeleteMovement(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("delete movement: %w", err)
	}
	if removed {
		slog.InfoContext(ctx, "Movement deleted", "movement_id", id, "user_id", userID)
		s.publishDelete(ctx, id)
	}
	return removed, nil
}

// Totals aggregates the user's ledger.
func (s *MovementService) Totals(ctx context.Context, userID int64) (core.Totals, error) {
	return s.storage.Totals(ctx, userID)
}

func (s *MovementService) publishSync(ctx context.Context, id, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMovementSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "movement_id", id, "error", err)
	}
}

func (s *MovementService) publishDelete(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMovementDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "movement_id", id, "error", err)
	}
}
