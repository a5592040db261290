// Package shimon implements the Hebrew legal agent for execution office,
// debt collection and bankruptcy questions.
package shimon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/agents"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
)

// AgentID is the id Shimon is registered under
const AgentID = "shimon"

// KnowledgeUpdateInterval is how often Shimon refreshes its legal sources
const KnowledgeUpdateInterval = 24 * time.Hour

const (
	classifierTemperature = 0.3
	classifierMaxTokens   = 100
	answerTemperature     = 0.3
)

// Agent answers legal questions grounded in scraped case law and guidelines
type Agent struct {
	*agents.BaseAgent
	km        *KnowledgeManager
	docs      knowledge.DocumentRepository

	mu             sync.RWMutex
	legalKnowledge map[string]json.RawMessage
	caseLaw        map[string][]*knowledge.Document
	templates      map[string][]*knowledge.Document
	lastUpdate     time.Time
}

var _ agents.Agent = (*Agent)(nil)

// NewFactory returns the registry constructor for Shimon
func NewFactory(kdeps KnowledgeDeps) agents.Factory {
	return func(cfg *agent.Config, deps agents.Deps) (agents.Agent, error) {
		return New(cfg, deps, kdeps)
	}
}

// New creates a Shimon agent
func New(cfg *agent.Config, deps agents.Deps, kdeps KnowledgeDeps) (*Agent, error) {
	if kdeps.Documents == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "shimon requires a document repository")
	}
	return &Agent{
		BaseAgent:      agents.NewBaseAgent(cfg, deps),
		km:             NewKnowledgeManager(cfg.ID, kdeps),
		docs:           kdeps.Documents,
		legalKnowledge: map[string]json.RawMessage{},
		caseLaw:        map[string][]*knowledge.Document{},
		templates:      map[string][]*knowledge.Document{},
		lastUpdate:     time.Now().UTC(),
	}, nil
}

// KnowledgeManager exposes the knowledge manager
func (a *Agent) KnowledgeManager() *KnowledgeManager {
	return a.km
}

// Initialize loads the base knowledge, then legal knowledge, case law and templates.
// Only a legal knowledge failure is fatal.
func (a *Agent) Initialize(ctx context.Context) error {
	if err := a.BaseAgent.Initialize(ctx); err != nil {
		return err
	}
	if err := a.loadLegalKnowledge(ctx); err != nil {
		a.Logger().Errorw("Failed to initialize Shimon agent", "error", err)
		return agents.InitError(a.ID(), err)
	}
	if err := a.loadCaseLaw(ctx); err != nil {
		a.Logger().Errorw("Failed to load case law", "error", err)
	}
	if err := a.loadTemplates(ctx); err != nil {
		a.Logger().Errorw("Failed to load templates", "error", err)
	}

	a.Logger().Infow("Shimon agent initialized successfully")
	return nil
}

func (a *Agent) loadLegalKnowledge(ctx context.Context) error {
	docs, err := a.docs.Find(ctx, knowledge.Query{AgentID: a.ID(), Type: knowledge.TypeLegalKnowledge})
	if err != nil {
		return errors.Wrap(errors.ErrKnowledgeBase, "load legal knowledge: "+err.Error())
	}
	kb := make(map[string]json.RawMessage, len(docs))
	for _, d := range docs {
		kb[d.Category] = d.Content
	}

	a.mu.Lock()
	a.legalKnowledge = kb
	a.mu.Unlock()
	return nil
}

func (a *Agent) loadCaseLaw(ctx context.Context) error {
	grouped, err := a.loadGrouped(ctx, knowledge.TypeRuling)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.caseLaw = grouped
	a.mu.Unlock()
	return nil
}

func (a *Agent) loadTemplates(ctx context.Context) error {
	grouped, err := a.loadGrouped(ctx, knowledge.TypeTemplate)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.templates = grouped
	a.mu.Unlock()
	return nil
}

// loadGrouped returns the agent's documents of a type by category, newest first
func (a *Agent) loadGrouped(ctx context.Context, docType knowledge.DocumentType) (map[string][]*knowledge.Document, error) {
	docs, err := a.docs.Find(ctx, knowledge.Query{AgentID: a.ID(), Type: docType, OrderBy: "recent"})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s documents", docType)
	}
	grouped := map[string][]*knowledge.Document{}
	for _, d := range docs {
		category := d.Category
		if category == "" {
			category = CategoryGeneral
		}
		grouped[category] = append(grouped[category], d)
	}
	return grouped, nil
}

// CaseLaw returns the loaded rulings of a category
func (a *Agent) CaseLaw(category string) []*knowledge.Document {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.caseLaw[category]
}

// Templates returns the loaded document templates of a category
func (a *Agent) Templates(category string) []*knowledge.Document {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.templates[category]
}

// LastKnowledgeUpdate returns when UpdateKnowledge last succeeded
func (a *Agent) LastKnowledgeUpdate() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastUpdate
}

// ProcessMessage answers a legal query
func (a *Agent) ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error) {
	start := time.Now()
	resp, err := a.process(ctx, msg, start)
	if err != nil {
		a.UpdateMetrics(false, time.Since(start).Seconds())
		var agentErr *errors.AgentError
		if errors.As(err, &agentErr) {
			return nil, err
		}
		return nil, errors.NewAgentError(a.ID(), "process message", err)
	}
	return resp, nil
}

func (a *Agent) process(ctx context.Context, msg *message.Message, start time.Time) (*message.Response, error) {
	category := a.categorize(ctx, msg.Content)

	legalContext, references, err := a.prepareLegalContext(ctx, category, msg.Content)
	if err != nil {
		return nil, err
	}

	content, err := a.Complete(ctx, []ai.Message{
		ai.SystemMessage(a.SystemPrompt()),
		ai.UserMessage(formatLegalQuery(msg.Content, legalContext, references)),
	}, answerTemperature, 0)
	if err != nil {
		return nil, err
	}

	confidence := Confidence(content)
	resp := &message.Response{
		Content:         content,
		AgentID:         a.ID(),
		ProcessingTime:  time.Since(start).Seconds(),
		ConfidenceScore: &confidence,
		Metadata: map[string]interface{}{
			"category":         category,
			"references":       references,
			"confidence_score": confidence,
		},
	}

	a.StoreInteraction(ctx, msg, resp)
	a.UpdateMetrics(true, resp.ProcessingTime)
	return resp, nil
}

// categorize asks the model for the legal category. Any failure yields general.
func (a *Agent) categorize(ctx context.Context, query string) string {
	reply, err := a.Complete(ctx, []ai.Message{
		ai.SystemMessage(classifierPrompt()),
		ai.UserMessage(query),
	}, classifierTemperature, classifierMaxTokens)
	if err != nil {
		a.Logger().Errorw("Failed to categorize query", "error", err)
		return CategoryGeneral
	}
	return MatchCategory(reply)
}

// legalContext is the knowledge block embedded in the model prompt
type legalContext struct {
	*RelevantKnowledge
	LegalKnowledge json.RawMessage `json:"legal_knowledge,omitempty"`
}

func (a *Agent) prepareLegalContext(ctx context.Context, category, query string) (string, []string, error) {
	rk, err := a.km.GetRelevantKnowledge(ctx, query, category)
	if err != nil {
		return "", nil, err
	}

	references := make([]string, 0, len(rk.Rulings))
	for _, r := range rk.Rulings {
		references = append(references, fmt.Sprintf("%s - %s", r.Title, r.URL))
	}

	lc := legalContext{RelevantKnowledge: rk}
	a.mu.RLock()
	lc.LegalKnowledge = a.legalKnowledge[category]
	a.mu.RUnlock()

	raw, err := json.Marshal(lc)
	if err != nil {
		return "", nil, errors.Wrap(err, "encode legal context")
	}
	return string(raw), references, nil
}

// UpdateKnowledge scrapes all sources, then reloads case law and templates
func (a *Agent) UpdateKnowledge(ctx context.Context) error {
	if err := a.km.UpdateAll(ctx); err != nil {
		return err
	}
	if err := a.loadCaseLaw(ctx); err != nil {
		return errors.NewAgentError(a.ID(), "update knowledge", fmt.Errorf("%w: %w", errors.ErrKnowledgeBase, err))
	}
	if err := a.loadTemplates(ctx); err != nil {
		return errors.NewAgentError(a.ID(), "update knowledge", fmt.Errorf("%w: %w", errors.ErrKnowledgeBase, err))
	}

	a.mu.Lock()
	a.lastUpdate = time.Now().UTC()
	a.mu.Unlock()

	a.Logger().Infow("Successfully updated legal knowledge base")
	return nil
}
