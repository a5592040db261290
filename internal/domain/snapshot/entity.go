package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a stored export of the metrics collector
type Snapshot struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Data      json.RawMessage `db:"data" json:"data"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// Repository persists snapshots
type Repository interface {
	Store(ctx context.Context, s *Snapshot) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
