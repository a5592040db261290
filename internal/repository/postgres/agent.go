package postgres

import (
	"context"
	"database/sql"

	"agentsplatform/internal/domain/agent"
	"agentsplatform/pkg/errors"
)

var _ agent.Repository = (*AgentRepository)(nil)

// AgentRepository implements agent.Repository over agent_configs and system_prompts
type AgentRepository struct {
	db DBTX
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db DBTX) *AgentRepository {
	return &AgentRepository{db: db}
}

// Upsert inserts the config or updates it in place
func (r *AgentRepository) Upsert(ctx context.Context, cfg *agent.Config) error {
	query := `
		INSERT INTO agent_configs (id, name, description, model, capabilities, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			model = EXCLUDED.model,
			capabilities = EXCLUDED.capabilities,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		cfg.ID, cfg.Name, cfg.Description, cfg.Model, cfg.Capabilities, cfg.Active, cfg.CreatedAt, cfg.UpdatedAt,
	).Scan(&cfg.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert agent config")
	}
	return nil
}

// Get retrieves a config by id
func (r *AgentRepository) Get(ctx context.Context, id string) (*agent.Config, error) {
	var cfg agent.Config
	err := r.db.GetContext(ctx, &cfg, `
		SELECT id, name, description, model, capabilities, active, created_at, updated_at
		FROM agent_configs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "agent config %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get agent config")
	}
	return &cfg, nil
}

// List returns all configs ordered by id
func (r *AgentRepository) List(ctx context.Context) ([]*agent.Config, error) {
	var configs []*agent.Config
	err := r.db.SelectContext(ctx, &configs, `
		SELECT id, name, description, model, capabilities, active, created_at, updated_at
		FROM agent_configs ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list agent configs")
	}
	return configs, nil
}

// SetActive flips the active flag
func (r *AgentRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agent_configs SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return errors.Wrap(err, "set agent active")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "agent config %s", id)
	}
	return nil
}

// SystemPrompt returns the oldest prompt stored for the agent
func (r *AgentRepository) SystemPrompt(ctx context.Context, agentID string) (string, error) {
	var prompt string
	err := r.db.GetContext(ctx, &prompt,
		`SELECT prompt FROM system_prompts WHERE agent_id = $1 ORDER BY id LIMIT 1`, agentID)
	if err == sql.ErrNoRows {
		return "", errors.Wrapf(errors.ErrNotFound, "system prompt for %s", agentID)
	}
	if err != nil {
		return "", errors.Wrap(err, "get system prompt")
	}
	return prompt, nil
}

// SaveSystemPrompt appends a prompt. Only the first one is served.
func (r *AgentRepository) SaveSystemPrompt(ctx context.Context, agentID, prompt string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_prompts (agent_id, prompt) VALUES ($1, $2)`, agentID, prompt)
	return errors.Wrap(err, "save system prompt")
}
