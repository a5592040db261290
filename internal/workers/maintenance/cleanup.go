package maintenance

import (
	"context"
	"time"

	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
)

// MetricsCleanup removes stored rows past the retention period
type MetricsCleanup struct {
	*workers.BaseWorker
	storage       Storage
	collector     Collector
	retentionDays int
}

// NewMetricsCleanup creates the metrics_cleanup task
func NewMetricsCleanup(storage Storage, collector Collector, retentionDays int, interval time.Duration) *MetricsCleanup {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &MetricsCleanup{
		BaseWorker:    workers.NewBaseWorker(workers.TaskMetricsCleanup, interval),
		storage:       storage,
		collector:     collector,
		retentionDays: retentionDays,
	}
}

// Run deletes expired rows and prunes the in-memory collector
func (w *MetricsCleanup) Run(ctx context.Context) error {
	errs := &errors.MultiError{}

	if err := w.storage.CleanupOldData(ctx, w.retentionDays); err != nil {
		errs.Add(errors.Wrap(err, "cleanup stored data"))
	}
	if w.collector != nil {
		if err := w.collector.Cleanup(ctx); err != nil {
			errs.Add(errors.Wrap(err, "cleanup collector"))
		}
	}

	if err := errs.ToError(); err != nil {
		return err
	}
	w.Log().Infow("Old data cleaned up", "retention_days", w.retentionDays)
	return nil
}

// CollectorCleanup resets hourly counters and forgets idle agents
type CollectorCleanup struct {
	*workers.BaseWorker
	collector Collector
}

// NewCollectorCleanup creates the collector_cleanup task
func NewCollectorCleanup(collector Collector, interval time.Duration) *CollectorCleanup {
	return &CollectorCleanup{
		BaseWorker: workers.NewBaseWorker(workers.TaskCollectorCleanup, interval),
		collector:  collector,
	}
}

// Run executes one collector cleanup
func (w *CollectorCleanup) Run(ctx context.Context) error {
	return w.collector.Cleanup(ctx)
}

// MetricsExporter writes collector snapshots to the configured sinks
type MetricsExporter struct {
	*workers.BaseWorker
	collector Collector
}

// NewMetricsExporter creates the metrics_export task
func NewMetricsExporter(collector Collector, interval time.Duration) *MetricsExporter {
	return &MetricsExporter{
		BaseWorker: workers.NewBaseWorker(workers.TaskMetricsExport, interval),
		collector:  collector,
	}
}

// Run executes one export
func (w *MetricsExporter) Run(ctx context.Context) error {
	return w.collector.Export(ctx)
}
