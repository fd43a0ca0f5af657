package amqp

import (
	"encoding/json"
	"time"
)

// MovementSyncMessage asks the export worker to (re)sync one movement.
// It carries only the id and version; the worker loads the row itself.
type MovementSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// MovementDeleteMessage asks the export worker to drop a movement's
// spreadsheet row.
type MovementDeleteMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope wraps both message kinds on the wire.
type Envelope struct {
	Kind   string                 `json:"kind"` // "sync" or "delete"
	Sync   *MovementSyncMessage   `json:"sync,omitempty"`
	Delete *MovementDeleteMessage `json:"delete,omitempty"`
}

const (
	KindSync   = "sync"
	KindDelete = "delete"
)

func NewMovementSyncMessage(id, version int64) *MovementSyncMessage {
	return &MovementSyncMessage{ID: id, Version: version, Timestamp: time.Now()}
}

func NewMovementDeleteMessage(id int64) *MovementDeleteMessage {
	return &MovementDeleteMessage{ID: id, Timestamp: time.Now()}
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
