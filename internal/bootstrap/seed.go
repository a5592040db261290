package bootstrap

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"agentsplatform/internal/domain/agent"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// AgentSeed is one entry of the agents file
type AgentSeed struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Model        string   `yaml:"model"`
	Capabilities []string `yaml:"capabilities"`
	Active       *bool    `yaml:"active"`
	SystemPrompt string   `yaml:"system_prompt"`
}

type agentsFile struct {
	Agents []AgentSeed `yaml:"agents"`
}

// ConfigStore reads and writes agent configs (implemented by agent.Service)
type ConfigStore interface {
	Get(ctx context.Context, id string) (*agent.Config, error)
	Save(ctx context.Context, cfg *agent.Config) error
}

// PromptStore writes system prompts (implemented by the agent repository)
type PromptStore interface {
	SaveSystemPrompt(ctx context.Context, agentID, prompt string) error
}

// LoadAgentSeeds parses the agents file. A missing file yields no seeds.
func LoadAgentSeeds(path string) ([]AgentSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "parse %s: %v", path, err)
	}
	return f.Agents, nil
}

// SeedAgents stores every seed whose id is not in storage yet. Stored configs
// are never overwritten, so toggles made through the API survive restarts.
// It returns how many configs were created.
func SeedAgents(ctx context.Context, configs ConfigStore, prompts PromptStore, seeds []AgentSeed) (int, error) {
	log := logger.Get().With("component", "agent_seed")
	created := 0

	for _, s := range seeds {
		_, err := configs.Get(ctx, s.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return created, errors.Wrapf(err, "look up agent %s", s.ID)
		}

		cfg := agent.NewConfig(s.ID, s.Name, s.Description, s.Capabilities...)
		if s.Model != "" {
			cfg.Model = s.Model
		}
		if s.Active != nil {
			cfg.Active = *s.Active
		}
		if err := configs.Save(ctx, cfg); err != nil {
			return created, errors.Wrapf(err, "seed agent %s", s.ID)
		}
		if s.SystemPrompt != "" && prompts != nil {
			if err := prompts.SaveSystemPrompt(ctx, s.ID, s.SystemPrompt); err != nil {
				return created, errors.Wrapf(err, "seed system prompt for %s", s.ID)
			}
		}

		created++
		log.Infow("Seeded agent config", "agent_id", s.ID, "active", cfg.Active)
	}
	return created, nil
}
