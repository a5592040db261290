package postgres

import (
	"context"
	"database/sql"

	"agentsplatform/internal/domain/usercontext"
	"agentsplatform/pkg/errors"
)

var _ usercontext.Repository = (*UserContextRepository)(nil)

// UserContextRepository implements usercontext.Repository
type UserContextRepository struct {
	db DBTX
}

// NewUserContextRepository creates a new user context repository
func NewUserContextRepository(db DBTX) *UserContextRepository {
	return &UserContextRepository{db: db}
}

// Get retrieves a user context
func (r *UserContextRepository) Get(ctx context.Context, userID string) (*usercontext.UserContext, error) {
	var uc usercontext.UserContext
	err := r.db.GetContext(ctx, &uc, `SELECT user_id, data, updated_at FROM user_context WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "user context %s", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user context")
	}
	return &uc, nil
}

// Save upserts a user context
func (r *UserContextRepository) Save(ctx context.Context, uc *usercontext.UserContext) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_context (user_id, data, updated_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		uc.UserID, jsonText(uc.Data), uc.UpdatedAt)
	return errors.Wrap(err, "save user context")
}
