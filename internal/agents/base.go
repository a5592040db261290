package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/interaction"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800
)

// BaseAgent carries the state and helpers every concrete agent shares.
// Concrete agents embed it and implement ProcessMessage and UpdateKnowledge.
type BaseAgent struct {
	cfg  agent.Config
	deps Deps
	log  *logger.Logger

	mu            sync.RWMutex
	active        bool
	metrics       agent.Metrics
	knowledgeBase map[string]json.RawMessage
	systemPrompt  string
}

// NewBaseAgent builds the shared part of an agent
func NewBaseAgent(cfg *agent.Config, deps Deps) *BaseAgent {
	c := *cfg
	if c.Model == "" {
		c.Model = agent.DefaultModel
	}
	return &BaseAgent{
		cfg:           c,
		deps:          deps,
		log:           logger.Get().With("component", "agent", "agent_id", c.ID),
		active:        c.Active,
		metrics:       agent.NewMetrics(c.ID),
		knowledgeBase: map[string]json.RawMessage{},
	}
}

func (b *BaseAgent) ID() string          { return b.cfg.ID }
func (b *BaseAgent) Name() string        { return b.cfg.Name }
func (b *BaseAgent) Description() string { return b.cfg.Description }
func (b *BaseAgent) Model() string       { return b.cfg.Model }

// Logger returns the agent-scoped logger
func (b *BaseAgent) Logger() *logger.Logger { return b.log }

func (b *BaseAgent) Active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *BaseAgent) SetActive(active bool) {
	b.mu.Lock()
	b.active = active
	b.mu.Unlock()
}

// Metrics returns a copy of the counters
func (b *BaseAgent) Metrics() agent.Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// SystemPrompt returns the loaded prompt
func (b *BaseAgent) SystemPrompt() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.systemPrompt
}

// Knowledge returns one entry of the loaded knowledge base
func (b *BaseAgent) Knowledge(key string) (json.RawMessage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.knowledgeBase[key]
	return v, ok
}

// SetKnowledge replaces one entry of the in-memory knowledge base
func (b *BaseAgent) SetKnowledge(key string, value json.RawMessage) {
	b.mu.Lock()
	b.knowledgeBase[key] = value
	b.mu.Unlock()
}

// Initialize loads the knowledge base and the system prompt
func (b *BaseAgent) Initialize(ctx context.Context) error {
	if err := b.loadKnowledgeBase(ctx); err != nil {
		b.log.Errorw("Failed to initialize agent", "error", err)
		return InitError(b.cfg.ID, err)
	}
	b.loadSystemPrompt(ctx)

	b.log.Infow("Agent initialized", "knowledge_entries", len(b.knowledgeBase))
	return nil
}

func (b *BaseAgent) loadKnowledgeBase(ctx context.Context) error {
	if b.deps.Knowledge == nil {
		return nil
	}
	kb, err := b.deps.Knowledge.LoadKnowledgeBase(ctx, b.cfg.ID)
	if err != nil {
		return errors.Wrap(errors.ErrKnowledgeBase, "load knowledge base: "+err.Error())
	}

	b.mu.Lock()
	for k, v := range kb {
		b.knowledgeBase[k] = v
	}
	b.mu.Unlock()
	return nil
}

func (b *BaseAgent) loadSystemPrompt(ctx context.Context) {
	var prompt string
	var err error
	if b.deps.Prompts != nil {
		prompt, err = b.deps.Prompts.SystemPrompt(ctx, b.cfg.ID)
	}
	if err != nil || prompt == "" {
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			b.log.Warnw("Failed to load system prompt, using default", "error", err)
		}
		prompt = fmt.Sprintf("You are %s, %s", b.cfg.Name, b.cfg.Description)
	}

	b.mu.Lock()
	b.systemPrompt = prompt
	b.mu.Unlock()
}

// Complete runs a chat completion with the agent's model. The system prompt is
// prepended unless messages already carry one. Zero temperature or maxTokens
// select the defaults.
func (b *BaseAgent) Complete(ctx context.Context, messages []ai.Message, temperature float64, maxTokens int) (string, error) {
	if b.deps.Chat == nil {
		return "", errors.NewAgentError(b.cfg.ID, "complete", errors.ErrCompletion)
	}
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if !ai.HasSystem(messages) {
		messages = append([]ai.Message{ai.SystemMessage(b.SystemPrompt())}, messages...)
	}

	resp, err := b.deps.Chat.Complete(ctx, ai.ChatRequest{
		Model:       b.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		b.log.Errorw("Completion failed", "error", err)
		return "", errors.NewAgentError(b.cfg.ID, "complete", fmt.Errorf("%w: %w", errors.ErrCompletion, err))
	}
	return resp.Content, nil
}

// StoreInteraction persists the message and response. Failures are logged only.
func (b *BaseAgent) StoreInteraction(ctx context.Context, msg *message.Message, resp *message.Response) {
	if b.deps.Interactions == nil {
		return
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		b.log.Errorw("Failed to encode message", "error", err)
		return
	}
	respJSON, err := json.Marshal(resp)
	if err != nil {
		b.log.Errorw("Failed to encode response", "error", err)
		return
	}

	err = b.deps.Interactions.StoreInteraction(ctx, &interaction.Interaction{
		ID:        uuid.New(),
		AgentID:   b.cfg.ID,
		Platform:  string(msg.Platform),
		UserID:    msg.UserID,
		Message:   msgJSON,
		Response:  respJSON,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		b.log.Errorw("Failed to store interaction", "error", err)
	}
}

// UpdateMetrics folds one request outcome into the counters
func (b *BaseAgent) UpdateMetrics(success bool, seconds float64) {
	b.mu.Lock()
	b.metrics.Record(success, seconds)
	b.mu.Unlock()
}

// InitError marks err as an initialization failure of the agent
func InitError(agentID string, err error) error {
	return errors.NewAgentError(agentID, "initialize", fmt.Errorf("%w: %w", errors.ErrAgentInitialization, err))
}
