package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"agentsplatform/internal/adapters/kafka"
	"agentsplatform/internal/agents"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// Version is reported in the system status
const Version = "1.0.0"

// ConfigStore persists agent configs
type ConfigStore interface {
	Save(ctx context.Context, cfg *agent.Config) error
	List(ctx context.Context) ([]*agent.Config, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// EventPublisher publishes interaction events
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

// InteractionEvent is published after every answered message
type InteractionEvent struct {
	AgentID   string            `json:"agent_id"`
	Message   *message.Message  `json:"message"`
	Response  *message.Response `json:"response"`
	Timestamp time.Time         `json:"timestamp"`
}

// Options configure the manager
type Options struct {
	Environment string
	// Events is optional. Without it interactions are not published.
	Events EventPublisher
}

// Manager owns the live agents: it loads them from stored configs, routes
// messages to them and reports their status
type Manager struct {
	registry *agents.Registry
	deps     agents.Deps
	configs  ConfigStore
	events   EventPublisher
	env      string
	started  time.Time
	log      *logger.Logger

	initMu      sync.Mutex
	initialized bool

	mu     sync.RWMutex
	agents map[string]agents.Agent
}

// NewManager creates an agent manager
func NewManager(registry *agents.Registry, deps agents.Deps, configs ConfigStore, opts Options) *Manager {
	return &Manager{
		registry: registry,
		deps:     deps,
		configs:  configs,
		events:   opts.Events,
		env:      opts.Environment,
		started:  time.Now(),
		log:      logger.Get().With("component", "agent_manager"),
		agents:   make(map[string]agents.Agent),
	}
}

// Initialize loads every stored config that has a registered factory. It runs once.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.initialized {
		return nil
	}

	configs, err := m.configs.List(ctx)
	if err != nil {
		m.log.Errorw("Failed to load registered agents", "error", err)
		return errors.Wrap(err, "load agent configs")
	}

	for _, cfg := range configs {
		factory, ok := m.registry.Get(cfg.ID)
		if !ok {
			m.log.Errorw("No constructor registered for agent, skipping", "agent_id", cfg.ID)
			continue
		}
		// a failing agent is logged by RegisterAgent and left out
		_ = m.RegisterAgent(ctx, factory, cfg)
	}

	m.initialized = true
	m.log.Infow("Agent manager initialized", "agents", len(m.snapshot()))
	return nil
}

func (m *Manager) ensureInitialized(ctx context.Context) error {
	m.initMu.Lock()
	done := m.initialized
	m.initMu.Unlock()
	if done {
		return nil
	}
	return m.Initialize(ctx)
}

// RegisterAgent constructs and initializes an agent, adds it to the live set
// and upserts its config
func (m *Manager) RegisterAgent(ctx context.Context, factory agents.Factory, cfg *agent.Config) error {
	fail := func(err error) error {
		m.log.Errorw("Failed to register agent", "agent_id", cfg.ID, "error", err)
		if errors.Is(err, errors.ErrAgentInitialization) {
			return err
		}
		return agents.InitError(cfg.ID, err)
	}

	a, err := factory(cfg, m.deps)
	if err != nil {
		return fail(err)
	}
	if err := a.Initialize(ctx); err != nil {
		return fail(err)
	}

	m.mu.Lock()
	m.agents[cfg.ID] = a
	m.mu.Unlock()

	if err := m.configs.Save(ctx, cfg); err != nil {
		return fail(err)
	}

	m.log.Infow("Registered agent", "agent_id", cfg.ID)
	return nil
}

// Agent returns a live agent
func (m *Manager) Agent(id string) (agents.Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// Agents returns the live agents
func (m *Manager) Agents() []agents.Agent {
	return m.snapshot()
}

func (m *Manager) snapshot() []agents.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]agents.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// ProcessMessage routes a message to its agent
func (m *Manager) ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error) {
	if err := m.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	a, ok := m.Agent(msg.AgentID)
	if !ok {
		return nil, errors.Wrapf(errors.ErrAgentNotFound, "agent %s", msg.AgentID)
	}
	if !a.Active() {
		return nil, errors.Wrapf(errors.ErrAgentInactive, "agent %s", msg.AgentID)
	}

	resp, err := a.ProcessMessage(ctx, msg)
	if err != nil {
		m.log.Errorw("Error processing message", "agent_id", msg.AgentID, "error", err)
		return nil, err
	}

	m.publishInteraction(ctx, msg, resp)
	return resp, nil
}

func (m *Manager) publishInteraction(ctx context.Context, msg *message.Message, resp *message.Response) {
	if m.events == nil {
		return
	}
	event := InteractionEvent{
		AgentID:   msg.AgentID,
		Message:   msg,
		Response:  resp,
		Timestamp: time.Now().UTC(),
	}
	if err := m.events.Publish(ctx, kafka.TopicInteractions, msg.AgentID, event); err != nil {
		m.log.Warnw("Failed to publish interaction event", "agent_id", msg.AgentID, "error", err)
	}
}

// UpdateAllKnowledge refreshes every active agent concurrently and returns
// the failures aggregated
func (m *Manager) UpdateAllKnowledge(ctx context.Context) error {
	if err := m.ensureInitialized(ctx); err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs errors.MultiError
	)
	var g errgroup.Group
	for _, a := range m.snapshot() {
		if !a.Active() {
			continue
		}
		g.Go(func() error {
			if err := a.UpdateKnowledge(ctx); err != nil {
				mu.Lock()
				errs.Add(err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs.HasErrors() {
		m.log.Errorw("Knowledge update failed for some agents", "failed", len(errs.Errors), "error", errs.ToError())
		return errs.ToError()
	}
	m.log.Infow("Updated knowledge for all active agents")
	return nil
}

// GetAgentConfigs lists the stored configs
func (m *Manager) GetAgentConfigs(ctx context.Context) ([]*agent.Config, error) {
	if err := m.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	configs, err := m.configs.List(ctx)
	if err != nil {
		m.log.Errorw("Failed to get agent configurations", "error", err)
		return nil, err
	}
	return configs, nil
}

// GetSystemStatus reports platform-wide counters and per-agent metrics
func (m *Manager) GetSystemStatus(ctx context.Context) (*agent.SystemStatus, error) {
	if err := m.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	status := &agent.SystemStatus{
		Version:      Version,
		Environment:  m.env,
		AgentsStatus: map[string]agent.Metrics{},
	}
	for _, a := range m.snapshot() {
		metrics := a.Metrics()
		status.AgentsStatus[a.ID()] = metrics
		status.TotalRequests24h += metrics.TotalRequests
		if a.Active() {
			status.ActiveAgents++
		}
	}

	status.SystemUptime = time.Since(m.started).Seconds()
	status.UptimeHuman = strings.TrimSpace(humanize.RelTime(m.started, time.Now(), "", ""))
	return status, nil
}

// SetAgentActive toggles a live agent and its stored config
func (m *Manager) SetAgentActive(ctx context.Context, id string, active bool) error {
	if err := m.ensureInitialized(ctx); err != nil {
		return err
	}
	a, ok := m.Agent(id)
	if !ok {
		return errors.Wrapf(errors.ErrAgentNotFound, "agent %s", id)
	}
	if err := m.configs.SetActive(ctx, id, active); err != nil {
		return errors.Wrapf(err, "persist active flag of %s", id)
	}
	a.SetActive(active)
	m.log.Infow("Agent active flag changed", "agent_id", id, "active", active)
	return nil
}

// StartedAt returns when the manager was created
func (m *Manager) StartedAt() time.Time {
	return m.started
}
