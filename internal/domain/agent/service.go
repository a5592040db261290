package agent

import (
	"context"
	"time"

	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/utils"
)

// Service validates agent configs before they reach storage
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new agent domain service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "agent_domain_service"),
	}
}

// Save validates cfg, fills defaults and upserts it
func (s *Service) Save(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.ErrInvalidInput
	}
	if err := utils.ValidateAgentID(cfg.ID); err != nil {
		return err
	}
	if cfg.Name == "" {
		return errors.NewValidationError("name", "must not be empty", cfg.Name)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return errors.Wrapf(err, "save agent config %s", cfg.ID)
	}
	s.log.Debugw("Agent config saved", "agent_id", cfg.ID, "active", cfg.Active)
	return nil
}

// Get retrieves an agent config by id
func (s *Service) Get(ctx context.Context, id string) (*Config, error) {
	if id == "" {
		return nil, errors.ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

// List returns every stored config
func (s *Service) List(ctx context.Context) ([]*Config, error) {
	return s.repo.List(ctx)
}

// SetActive toggles the stored active flag
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return errors.ErrInvalidInput
	}
	return s.repo.SetActive(ctx, id, active)
}

// SystemPrompt returns the stored prompt, or "" with ErrNotFound when there is none
func (s *Service) SystemPrompt(ctx context.Context, agentID string) (string, error) {
	return s.repo.SystemPrompt(ctx, agentID)
}
