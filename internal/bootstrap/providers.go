package bootstrap

import (
	"net/http"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/adapters/embeddings"
	errnoop "agentsplatform/internal/adapters/errors/noop"
	"agentsplatform/internal/adapters/errors/sentry"
	"agentsplatform/internal/adapters/kafka"
	pgclient "agentsplatform/internal/adapters/postgres"
	redisclient "agentsplatform/internal/adapters/redis"
	"agentsplatform/internal/agents"
	"agentsplatform/internal/agents/shimon"
	"agentsplatform/internal/api"
	"agentsplatform/internal/api/health"
	"agentsplatform/internal/api/rest"
	"agentsplatform/internal/api/webhooks"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/integrations"
	"agentsplatform/internal/metrics"
	pgrepo "agentsplatform/internal/repository/postgres"
	agentsvc "agentsplatform/internal/services/agent"
	"agentsplatform/internal/storage"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects to Postgres and Redis and applies the schema
func (c *Container) MustInitInfrastructure() {
	var err error

	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	if err := c.PG.Migrate(c.Context); err != nil {
		c.Log.Fatalf("failed to migrate postgres: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories initializes the Postgres repositories
func (c *Container) MustInitRepositories() {
	db := c.PG.DB()
	c.Repos.Agents = pgrepo.NewAgentRepository(db)
	c.Repos.Knowledge = pgrepo.NewKnowledgeRepository(db)
	c.Repos.Documents = pgrepo.NewDocumentRepository(db)
	c.Repos.Interactions = pgrepo.NewInteractionRepository(db)
	c.Repos.UserContext = pgrepo.NewUserContextRepository(db)
	c.Repos.Snapshots = pgrepo.NewSnapshotRepository(db)

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes Kafka, the OpenAI clients and the messaging platforms
func (c *Container) MustInitAdapters() {
	var err error

	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
		c.Adapters.InboundConsumer = provideKafkaConsumer(c.Config, kafka.TopicInboundMessages, c.Log)
	} else {
		c.Log.Info("Kafka brokers not configured, inbound messages are handled in-process")
	}

	c.Adapters.Usage = ai.NewUsageTracker()
	c.Adapters.Chat, err = ai.NewOpenAIChat(c.Config.OpenAI, c.Adapters.Usage)
	if err != nil {
		c.Log.Fatalf("failed to create chat client: %v", err)
	}
	c.Log.Infow("✓ Chat client initialized", "model", c.Config.OpenAI.Model, "azure", c.Config.OpenAI.Azure())

	if c.Config.Knowledge.UseEmbeddings {
		provider, err := embeddings.NewOpenAIProvider(c.Config.OpenAI)
		if err != nil {
			c.Log.Fatalf("failed to create embedding provider: %v", err)
		}
		c.Adapters.Embedder = provider
		c.Log.Infof("✓ Embedding provider initialized (%d dimensions)", provider.Dimensions())
	}

	c.Adapters.Integrations = integrations.NewManager(integrations.Config{
		Telegram:     c.Config.Telegram,
		WhatsApp:     c.Config.WhatsApp,
		DefaultAgent: c.Config.App.DefaultAgent,
	}, integrations.WithQuota(c.Redis))
	if err := c.Adapters.Integrations.Initialize(c.Context); err != nil {
		// the API stays usable without messaging platforms
		c.Log.Warnw("Messaging platforms unavailable", "error", err)
	} else {
		c.Log.Infow("✓ Integrations initialized", "platforms", c.Adapters.Integrations.ActivePlatforms())
	}
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices wires storage, the agent manager and the metrics collector
func (c *Container) MustInitServices() {
	c.Services.Storage = storage.NewManager(c.PG, c.Redis, storage.Repositories{
		Knowledge:    c.Repos.Knowledge,
		Interactions: c.Repos.Interactions,
		Users:        c.Repos.UserContext,
		Snapshots:    c.Repos.Snapshots,
	}, c.Config.Redis.DefaultTTL)
	if err := c.Services.Storage.Initialize(c.Context); err != nil {
		c.Log.Fatalf("failed to initialize storage: %v", err)
	}

	c.Services.AgentConfigs = agent.NewService(c.Repos.Agents)
	c.mustSeedAgents()

	c.Services.AgentRegistry = agents.NewRegistry()
	c.Services.AgentRegistry.Register(shimon.AgentID, shimon.NewFactory(shimon.KnowledgeDeps{
		Documents:  c.Repos.Documents,
		Embedder:   c.Adapters.Embedder,
		Locker:     c.Redis,
		HTTPClient: &http.Client{Timeout: c.Config.Knowledge.FetchTimeout},
		Sources:    c.Config.Knowledge,
	}))

	opts := agentsvc.Options{Environment: c.Config.App.Env}
	if c.Adapters.KafkaProducer != nil {
		opts.Events = c.Adapters.KafkaProducer
	}
	c.Services.Agents = agentsvc.NewManager(c.Services.AgentRegistry, agents.Deps{
		Chat:         c.Adapters.Chat,
		Knowledge:    c.Services.Storage,
		Prompts:      c.Services.AgentConfigs,
		Interactions: c.Services.Storage,
	}, c.Services.AgentConfigs, opts)
	if err := c.Services.Agents.Initialize(c.Context); err != nil {
		c.Log.Fatalf("failed to initialize agents: %v", err)
	}

	c.Services.Collector = provideCollector(c.Config, c.Services.Storage, c.Adapters.KafkaProducer)
	metrics.Init()
	metrics.RegisterCustomCollector(metrics.NewCustomCollector(c.PG.DB(), c.Adapters.Usage))

	c.Log.Infow("✓ Services initialized", "agents", len(c.Services.Agents.Agents()))
}

func (c *Container) mustSeedAgents() {
	seeds, err := LoadAgentSeeds(c.Config.App.AgentsFile)
	if err != nil {
		c.Log.Fatalf("failed to load agents file: %v", err)
	}
	created, err := SeedAgents(c.Context, c.Services.AgentConfigs, c.Repos.Agents, seeds)
	if err != nil {
		c.Log.Fatalf("failed to seed agents: %v", err)
	}
	if created > 0 {
		c.Log.Infow("✓ Agent configs seeded", "created", created, "file", c.Config.App.AgentsFile)
	}
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication builds the HTTP server
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(c.Config.App.Name, c.Config.App.Version,
		health.Check{Name: "postgres", Fn: c.PG.Health},
		health.Check{Name: "redis", Fn: c.Redis.Health},
	)

	apiHandler := rest.NewHandler(rest.Config{
		Prefix:    c.Config.HTTP.APIPrefix,
		Agents:    c.Services.Agents,
		Monitor:   c.Services.Collector,
		Scheduler: c.Background.Scheduler,
	})

	var webhookHandler *webhooks.Handler
	if len(c.Adapters.Integrations.ActivePlatforms()) > 0 {
		webhookHandler = webhooks.NewHandler(c.Adapters.Integrations, c.Background.Queue, c.Config.Telegram.SecretToken)
	}

	serverCfg := api.ServerConfig{
		Port:         c.Config.HTTP.Port,
		ServiceName:  c.Config.App.Name,
		Version:      c.Config.App.Version,
		ReadTimeout:  c.Config.HTTP.ReadTimeout,
		WriteTimeout: c.Config.HTTP.WriteTimeout,
	}
	c.Application.HTTPServer = api.NewServer(serverCfg,
		api.NewRouter(serverCfg, c.Application.HealthHandler, apiHandler, webhookHandler))

	c.Log.Info("✓ Application layer initialized")
}

// ========================================
// Provider helpers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(sentry.Options{
		DSN:         cfg.ErrorTracking.SentryDSN,
		Environment: cfg.ErrorTracking.Environment,
		Release:     cfg.App.Version,
		SampleRate:  cfg.ErrorTracking.SampleRate,
	})
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	log.Infow("✓ Kafka consumer initialized", "topic", topic)
	return consumer
}

func provideCollector(cfg *config.Config, store metrics.SnapshotStore, producer *kafka.Producer) *metrics.Collector {
	opts := []metrics.Option{metrics.WithSnapshotStore(store)}
	if producer != nil {
		opts = append(opts, metrics.WithPublisher(producer))
	}
	if cfg.App.Debug && cfg.App.MetricsExportPath != "" {
		opts = append(opts, metrics.WithExportFile(cfg.App.MetricsExportPath))
	}
	return metrics.NewCollector(opts...)
}
