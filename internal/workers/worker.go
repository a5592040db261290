package workers

import (
	"context"
	"time"

	"agentsplatform/pkg/logger"
)

// Worker is a periodic task run by the Scheduler
type Worker interface {
	// Name returns the unique task name
	Name() string

	// Run executes one iteration and returns
	Run(ctx context.Context) error

	// Interval returns how often the task should run. Zero selects the default for its name.
	Interval() time.Duration
}

// TaskFunc is the body of a scheduled task
type TaskFunc func(ctx context.Context) error

// BaseWorker provides the name, interval and logger of a worker
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(name string, interval time.Duration) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		log:      logger.Get().With("component", "worker", "worker", name),
	}
}

// Name returns the worker name
func (w *BaseWorker) Name() string {
	return w.name
}

// Interval returns the run interval
func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

// Log returns the logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

type funcWorker struct {
	*BaseWorker
	fn TaskFunc
}

func (f *funcWorker) Run(ctx context.Context) error {
	return f.fn(ctx)
}

// NewFuncWorker wraps fn as a Worker
func NewFuncWorker(name string, interval time.Duration, fn TaskFunc) Worker {
	return &funcWorker{BaseWorker: NewBaseWorker(name, interval), fn: fn}
}
