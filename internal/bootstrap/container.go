package bootstrap

import (
	"context"
	"sync"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/adapters/embeddings"
	"agentsplatform/internal/adapters/kafka"
	pgclient "agentsplatform/internal/adapters/postgres"
	redisclient "agentsplatform/internal/adapters/redis"
	"agentsplatform/internal/agents"
	"agentsplatform/internal/api"
	"agentsplatform/internal/api/health"
	"agentsplatform/internal/consumers"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/integrations"
	"agentsplatform/internal/metrics"
	pgrepo "agentsplatform/internal/repository/postgres"
	agentsvc "agentsplatform/internal/services/agent"
	"agentsplatform/internal/storage"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups the Postgres repositories
type Repositories struct {
	Agents       *pgrepo.AgentRepository
	Knowledge    *pgrepo.KnowledgeRepository
	Documents    *pgrepo.DocumentRepository
	Interactions *pgrepo.InteractionRepository
	UserContext  *pgrepo.UserContextRepository
	Snapshots    *pgrepo.SnapshotRepository
}

// Adapters groups all external adapters
type Adapters struct {
	// Kafka, nil when no brokers are configured
	KafkaProducer   *kafka.Producer
	InboundConsumer *kafka.Consumer

	// AI & Embeddings
	Chat     *ai.OpenAIChat
	Usage    *ai.UsageTracker
	Embedder embeddings.Provider // nil unless KNOWLEDGE_USE_EMBEDDINGS

	Integrations *integrations.Manager
}

// Services groups the platform services
type Services struct {
	Storage       *storage.Manager
	AgentConfigs  *agent.Service
	AgentRegistry *agents.Registry
	Agents        *agentsvc.Manager
	Collector     *metrics.Collector
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	Scheduler  *workers.Scheduler
	Handler    *consumers.Handler
	Queue      consumers.Queue
	LocalQueue *consumers.LocalQueue      // set when Kafka is disabled
	InboundSvc *consumers.InboundConsumer // nil when Kafka is disabled
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Background.InboundSvc != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := c.Background.InboundSvc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Inbound consumer failed", "error", err)
			}
		}()
		c.Log.Infow("✓ Inbound consumer started", "topic", kafka.TopicInboundMessages)
	}

	if err := c.Background.Scheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start scheduler")
	}
	c.Log.Infow("✓ Scheduler started", "tasks", len(c.Background.Scheduler.GetStatus()))

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	if base := c.Config.HTTP.PublicBaseURL; base != "" && len(c.Adapters.Integrations.ActivePlatforms()) > 0 {
		results, err := c.Adapters.Integrations.SetupWebhooks(c.Context, base)
		if err != nil {
			c.Log.Errorw("Webhook setup failed", "error", err, "results", results)
		} else {
			c.Log.Infow("✓ Webhooks configured", "results", results)
		}
	}

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	c.Lifecycle.Shutdown(ShutdownTargets{
		WG:            c.WG,
		HTTPServer:    c.Application.HTTPServer,
		Scheduler:     c.Background.Scheduler,
		LocalQueue:    c.Background.LocalQueue,
		KafkaProducer: c.Adapters.KafkaProducer,
		Integrations:  c.Adapters.Integrations,
		Collector:     c.Services.Collector,
		PG:            c.PG,
		Redis:         c.Redis,
		ErrorTracker:  c.ErrorTracker,
	}, c.Log)
}
