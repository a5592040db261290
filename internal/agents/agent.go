// Package agents defines the contract every platform agent implements and the
// shared behaviour concrete agents embed.
package agents

import (
	"context"
	"encoding/json"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/interaction"
	"agentsplatform/internal/domain/message"
)

// Agent is a running agent instance owned by the manager
type Agent interface {
	ID() string
	Name() string
	Description() string
	Active() bool
	SetActive(active bool)

	Initialize(ctx context.Context) error
	ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error)
	UpdateKnowledge(ctx context.Context) error

	Metrics() agent.Metrics
}

// KnowledgeLoader reads the generic key/value knowledge base of an agent
type KnowledgeLoader interface {
	LoadKnowledgeBase(ctx context.Context, agentID string) (map[string]json.RawMessage, error)
}

// PromptSource returns the stored system prompt of an agent
type PromptSource interface {
	SystemPrompt(ctx context.Context, agentID string) (string, error)
}

// InteractionStore persists processed messages
type InteractionStore interface {
	StoreInteraction(ctx context.Context, i *interaction.Interaction) error
}

// Deps are the collaborators shared by every agent
type Deps struct {
	Chat         ai.ChatClient
	Knowledge    KnowledgeLoader
	Prompts      PromptSource
	Interactions InteractionStore
}

// Factory constructs an agent from its stored config
type Factory func(cfg *agent.Config, deps Deps) (Agent, error)
