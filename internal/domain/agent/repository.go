package agent

import (
	"context"
)

// Repository persists agent configs and their system prompts
type Repository interface {
	// Upsert creates the config or replaces every field except created_at
	Upsert(ctx context.Context, cfg *Config) error

	// Get returns errors.ErrNotFound when no config has the id
	Get(ctx context.Context, id string) (*Config, error)

	List(ctx context.Context) ([]*Config, error)

	SetActive(ctx context.Context, id string, active bool) error

	// SystemPrompt returns the first stored prompt for the agent
	SystemPrompt(ctx context.Context, agentID string) (string, error)

	SaveSystemPrompt(ctx context.Context, agentID, prompt string) error
}
