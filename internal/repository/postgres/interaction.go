package postgres

import (
	"context"
	"time"

	"agentsplatform/internal/domain/interaction"
	"agentsplatform/pkg/errors"
)

var _ interaction.Repository = (*InteractionRepository)(nil)

// InteractionRepository implements interaction.Repository
type InteractionRepository struct {
	db DBTX
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db DBTX) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Store inserts an interaction
func (r *InteractionRepository) Store(ctx context.Context, i *interaction.Interaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interactions (id, agent_id, platform, user_id, message, response, timestamp)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7)`,
		i.ID, i.AgentID, i.Platform, i.UserID, jsonText(i.Message), jsonText(i.Response), i.Timestamp)
	return errors.Wrap(err, "store interaction")
}

// CountSince counts interactions at or after since
func (r *InteractionRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM interactions WHERE timestamp >= $1`, since); err != nil {
		return 0, errors.Wrap(err, "count interactions")
	}
	return n, nil
}

// DeleteBefore removes interactions older than cutoff
func (r *InteractionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteBefore(ctx, r.db, "interactions", cutoff)
}
