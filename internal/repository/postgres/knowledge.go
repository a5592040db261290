package postgres

import (
	"context"
	"database/sql"
	"time"

	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/pkg/errors"
)

var _ knowledge.Repository = (*KnowledgeRepository)(nil)

// KnowledgeRepository implements knowledge.Repository over knowledge_base
type KnowledgeRepository struct {
	db DBTX
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db DBTX) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Store inserts or replaces an entry by id
func (r *KnowledgeRepository) Store(ctx context.Context, e *knowledge.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO knowledge_base (id, agent_id, type, data, timestamp)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, timestamp = EXCLUDED.timestamp`,
		e.ID, e.AgentID, e.Type, jsonText(e.Data), e.Timestamp)
	return errors.Wrap(err, "store knowledge entry")
}

// Latest returns the newest entry of the type
func (r *KnowledgeRepository) Latest(ctx context.Context, agentID, entryType string) (*knowledge.Entry, error) {
	var e knowledge.Entry
	err := r.db.GetContext(ctx, &e, `
		SELECT id, agent_id, type, data, timestamp
		FROM knowledge_base
		WHERE agent_id = $1 AND type = $2
		ORDER BY timestamp DESC
		LIMIT 1`, agentID, entryType)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "knowledge %s/%s", agentID, entryType)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get latest knowledge")
	}
	return &e, nil
}

// LatestPerType returns the newest entry for each type of the agent
func (r *KnowledgeRepository) LatestPerType(ctx context.Context, agentID string) ([]*knowledge.Entry, error) {
	var entries []*knowledge.Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT DISTINCT ON (type) id, agent_id, type, data, timestamp
		FROM knowledge_base
		WHERE agent_id = $1
		ORDER BY type, timestamp DESC`, agentID)
	if err != nil {
		return nil, errors.Wrap(err, "list knowledge")
	}
	return entries, nil
}

// DeleteBefore removes entries older than cutoff
func (r *KnowledgeRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteBefore(ctx, r.db, "knowledge_base", cutoff)
}

// deleteBefore is shared by the retention cleanups. table is never user input.
func deleteBefore(ctx context.Context, db DBTX, table string, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrapf(err, "cleanup %s", table)
	}
	return res.RowsAffected()
}
