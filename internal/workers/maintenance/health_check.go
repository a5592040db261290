package maintenance

import (
	"context"
	"time"

	"agentsplatform/internal/metrics"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
)

const storagePingTimeout = 5 * time.Second

// HealthCheck pings storage and logs the collector health summary
type HealthCheck struct {
	*workers.BaseWorker
	storage   Storage
	collector Collector
}

// NewHealthCheck creates the health_check task
func NewHealthCheck(storage Storage, collector Collector, interval time.Duration) *HealthCheck {
	return &HealthCheck{
		BaseWorker: workers.NewBaseWorker(workers.TaskHealthCheck, interval),
		storage:    storage,
		collector:  collector,
	}
}

// Run executes one health check
func (w *HealthCheck) Run(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, storagePingTimeout)
	defer cancel()

	if err := w.storage.Health(pingCtx); err != nil {
		return errors.Wrap(err, "storage health check")
	}

	if w.collector == nil {
		return nil
	}
	health := w.collector.GetSystemHealth()
	if health.Status != metrics.StatusHealthy {
		w.Log().Warnw("System health degraded",
			"error_rate", health.ErrorRate,
			"total_requests", health.TotalRequests,
			"active_agents", health.ActiveAgents,
		)
		return nil
	}
	w.Log().Debugw("System healthy",
		"uptime", health.Uptime,
		"total_requests", health.TotalRequests,
	)
	return nil
}
