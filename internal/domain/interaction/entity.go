package interaction

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Interaction is one processed message and the response given to it
type Interaction struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AgentID   string          `db:"agent_id" json:"agent_id"`
	Platform  string          `db:"platform" json:"platform"`
	UserID    string          `db:"user_id" json:"user_id"`
	Message   json.RawMessage `db:"message" json:"message"`
	Response  json.RawMessage `db:"response" json:"response"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// Repository persists interactions
type Repository interface {
	Store(ctx context.Context, i *Interaction) error
	CountSince(ctx context.Context, since time.Time) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
