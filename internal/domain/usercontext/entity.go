package usercontext

import (
	"context"
	"encoding/json"
	"time"
)

// UserContext is free-form per-user state kept across conversations
type UserContext struct {
	UserID    string          `db:"user_id" json:"user_id"`
	Data      json.RawMessage `db:"data" json:"data"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Repository persists user contexts
type Repository interface {
	// Get returns errors.ErrNotFound for unknown users
	Get(ctx context.Context, userID string) (*UserContext, error)
	Save(ctx context.Context, uc *UserContext) error
}
