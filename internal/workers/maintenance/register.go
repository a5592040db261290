package maintenance

import (
	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
)

// Deps are the services the maintenance tasks operate on
type Deps struct {
	Agents    AgentPool
	Storage   Storage
	Collector Collector
	Tracker   errors.Tracker // optional
	Sender    Sender         // optional, used for admin alerts
	AdminIDs  []int64
}

// Register adds every maintenance task to the scheduler
func Register(s *workers.Scheduler, d Deps, cfg config.WorkerConfig) error {
	tasks := []workers.Worker{
		NewKnowledgeUpdater(d.Agents, d.Collector, cfg.KnowledgeUpdateInterval),
		NewMetricsCleanup(d.Storage, d.Collector, cfg.DataRetentionDays, cfg.MetricsCleanupInterval),
		NewHealthCheck(d.Storage, d.Collector, cfg.HealthCheckInterval),
		NewErrorNotifier(d.Collector, d.Tracker, d.Sender, ErrorNotifierConfig{
			Threshold: cfg.ErrorRateNotifyThreshold,
			AdminIDs:  d.AdminIDs,
			Interval:  cfg.ErrorNotifyInterval,
		}),
		NewMetricsExporter(d.Collector, cfg.MetricsExportInterval),
		NewCollectorCleanup(d.Collector, cfg.CollectorCleanupInterval),
	}

	for _, t := range tasks {
		if err := s.Register(t); err != nil {
			return errors.Wrapf(err, "register %s", t.Name())
		}
	}
	return nil
}
