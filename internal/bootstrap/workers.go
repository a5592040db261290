package bootstrap

import (
	"agentsplatform/internal/consumers"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/workers"
	"agentsplatform/internal/workers/maintenance"
)

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground builds the inbound message pipeline and the task scheduler
func (c *Container) MustInitBackground() {
	c.Background.Handler = consumers.NewHandler(c.Services.Agents, c.Adapters.Integrations, c.Services.Collector)

	if c.Adapters.KafkaProducer != nil {
		c.Background.Queue = consumers.NewKafkaQueue(c.Adapters.KafkaProducer)
		c.Background.InboundSvc = consumers.NewInboundConsumer(c.Adapters.InboundConsumer, c.Background.Handler, 0)
	} else {
		c.Background.LocalQueue = consumers.NewLocalQueue(c.Background.Handler, 0, 0)
		c.Background.Queue = c.Background.LocalQueue
	}

	c.Background.Scheduler = workers.NewScheduler(workers.WithTick(c.Config.Workers.SchedulerTick))
	if err := maintenance.Register(c.Background.Scheduler, c.maintenanceDeps(), c.Config.Workers); err != nil {
		c.Log.Fatalf("failed to register maintenance tasks: %v", err)
	}

	c.Log.Infow("✓ Background processing initialized",
		"kafka", c.Adapters.KafkaProducer != nil,
		"tasks", len(c.Background.Scheduler.GetStatus()),
	)
}

func (c *Container) maintenanceDeps() maintenance.Deps {
	d := maintenance.Deps{
		Agents:    c.Services.Agents,
		Storage:   c.Services.Storage,
		Collector: c.Services.Collector,
		Tracker:   c.ErrorTracker,
	}

	// admin alerts go out over Telegram only
	for _, p := range c.Adapters.Integrations.ActivePlatforms() {
		if p == string(message.PlatformTelegram) && len(c.Config.Telegram.AdminIDs) > 0 {
			d.Sender = c.Adapters.Integrations
			d.AdminIDs = c.Config.Telegram.AdminIDs
		}
	}
	return d
}
