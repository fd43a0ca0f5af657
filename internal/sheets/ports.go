// Package sheets defines the ports the export worker writes through.
package sheets

import (
	"context"
	"time"
)

// Row is one exported movement. The movement id lands in the first
// spreadsheet column and is the key for replacement and deletion.
type Row struct {
	MovementID    int64
	Username      string
	Type          string
	Description   string
	PaymentMethod string
	Amount        string
	CreatedAt     time.Time
	Version       int64
}

// MovementWriter replaces or appends a movement's spreadsheet row.
type MovementWriter interface {
	Upsert(ctx context.Context, row Row) error
}

// MovementDeleter removes a movement's spreadsheet row, if present.
type MovementDeleter interface {
	Delete(ctx context.Context, movementID int64) error
}
