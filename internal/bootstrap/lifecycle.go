package bootstrap

import (
	"context"
	"sync"
	"time"

	"agentsplatform/internal/adapters/kafka"
	pgclient "agentsplatform/internal/adapters/postgres"
	redisclient "agentsplatform/internal/adapters/redis"
	"agentsplatform/internal/api"
	"agentsplatform/internal/consumers"
	"agentsplatform/internal/integrations"
	"agentsplatform/internal/metrics"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// ShutdownTargets are the components stopped by Shutdown. Nil fields are skipped.
type ShutdownTargets struct {
	WG            *sync.WaitGroup
	HTTPServer    *api.Server
	Scheduler     *workers.Scheduler
	LocalQueue    *consumers.LocalQueue
	KafkaProducer *kafka.Producer
	Integrations  *integrations.Manager
	Collector     *metrics.Collector
	PG            *pgclient.Client
	Redis         *redisclient.Client
	ErrorTracker  errors.Tracker
}

// Shutdown performs coordinated cleanup of all components in the correct order:
// 1. No new requests accepted
// 2. Scheduled tasks and in-flight messages finish
// 3. Consumer goroutines exit
// 4. A last metrics snapshot is exported
// 5. Producer closes after everything that publishes
// 6. Errors and logs flushed
// 7. Database connections last (other components may need them)
func (l *Lifecycle) Shutdown(t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/8] Stopping HTTP server...")
	if t.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := t.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		} else {
			log.Info("✓ HTTP server stopped")
		}
		httpCancel()
	}

	log.Info("[2/8] Stopping scheduler...")
	if t.Scheduler != nil {
		if err := t.Scheduler.Stop(); err != nil {
			log.Errorw("Scheduler shutdown failed", "error", err)
		} else {
			log.Info("✓ Scheduler stopped")
		}
	}

	log.Info("[3/8] Draining in-process message queue...")
	if t.LocalQueue != nil {
		queueCtx, queueCancel := context.WithTimeout(shutdownCtx, 30*time.Second)
		if err := t.LocalQueue.Wait(queueCtx); err != nil {
			log.Warnw("⚠ Queued messages still in flight", "error", err)
		} else {
			log.Info("✓ Message queue drained")
		}
		queueCancel()
	}

	log.Info("[4/8] Waiting for consumer goroutines...")
	if t.WG != nil {
		l.waitForGoroutines(t.WG, 10*time.Second, log)
	}

	log.Info("[5/8] Exporting final metrics snapshot...")
	if t.Collector != nil {
		exportCtx, exportCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := t.Collector.Export(exportCtx); err != nil {
			log.Warnw("Final metrics export incomplete", "error", err)
		}
		exportCancel()
	}

	log.Info("[6/8] Closing Kafka producer and integrations...")
	if t.KafkaProducer != nil {
		if err := t.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}
	if t.Integrations != nil {
		_ = t.Integrations.Close()
	}

	log.Info("[7/8] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	}

	log.Info("[8/8] Closing database connections...")
	l.closeDatabases(t.PG, t.Redis, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

func (l *Lifecycle) closeDatabases(pg *pgclient.Client, rdb *redisclient.Client, log *logger.Logger) {
	errs := &errors.MultiError{}

	if pg != nil {
		if err := pg.Close(); err != nil {
			errs.Add(errors.Wrap(err, "postgres"))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			errs.Add(errors.Wrap(err, "redis"))
		}
	}

	if err := errs.ToError(); err != nil {
		log.Errorw("Database close errors", "error", err)
		return
	}
	log.Info("✓ Database connections closed")
}
