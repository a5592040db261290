package workers

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"agentsplatform/internal/metrics"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

const (
	// DefaultMaxErrors is the number of consecutive failures after which a task is removed
	DefaultMaxErrors = 3

	defaultTick        = time.Second
	defaultWaitTimeout = 30 * time.Second
	fallbackInterval   = time.Hour
)

// Task names with a default interval
const (
	TaskKnowledgeUpdate   = "knowledge_update"
	TaskMetricsCleanup    = "metrics_cleanup"
	TaskSystemBackup      = "system_backup"
	TaskHealthCheck       = "health_check"
	TaskErrorNotification = "error_notification"
	TaskMetricsExport     = "metrics_export"
	TaskCollectorCleanup  = "collector_cleanup"
)

var defaultIntervals = map[string]time.Duration{
	TaskKnowledgeUpdate:   time.Hour,
	TaskMetricsCleanup:    24 * time.Hour,
	TaskSystemBackup:      12 * time.Hour,
	TaskHealthCheck:       5 * time.Minute,
	TaskErrorNotification: 30 * time.Minute,
	TaskMetricsExport:     5 * time.Minute,
	TaskCollectorCleanup:  time.Hour,
}

// DefaultInterval returns the interval used when a task is added without one
func DefaultInterval(name string) time.Duration {
	if d, ok := defaultIntervals[name]; ok {
		return d
	}
	return fallbackInterval
}

// TaskStatus is the externally visible state of a task
type TaskStatus struct {
	LastRun    *time.Time `json:"last_run"`
	IsRunning  bool       `json:"is_running"`
	ErrorCount int        `json:"error_count"`
	Interval   int64      `json:"interval"` // seconds
	NextRun    time.Time  `json:"next_run"`
}

type task struct {
	name       string
	fn         TaskFunc
	interval   time.Duration
	lastRun    time.Time
	running    bool
	errorCount int
	maxErrors  int
	done       chan struct{} // closed when the current run ends
}

func (t *task) due(now time.Time) bool {
	return !t.running && (t.lastRun.IsZero() || now.Sub(t.lastRun) >= t.interval)
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTick sets how often due tasks are checked
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithWaitTimeout bounds how long Stop and RemoveTask wait for a running task
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs named tasks at fixed intervals. A task never overlaps itself.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task

	tick        time.Duration
	waitTimeout time.Duration
	now         func() time.Time

	started     bool
	cancel      context.CancelFunc
	cancelTasks context.CancelFunc
	taskCtx     context.Context
	loopDone    chan struct{}

	log *logger.Logger
}

// NewScheduler creates a new task scheduler
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:       make(map[string]*task),
		tick:        defaultTick,
		waitTimeout: defaultWaitTimeout,
		now:         time.Now,
		log:         logger.Get().With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a worker as a task
func (s *Scheduler) Register(w Worker) error {
	return s.AddTask(w.Name(), w.Run, w.Interval())
}

// AddTask adds a task. A zero interval selects DefaultInterval(name).
func (s *Scheduler) AddTask(name string, fn TaskFunc, interval time.Duration) error {
	if name == "" || fn == nil {
		return errors.Wrap(errors.ErrInvalidInput, "task name and func are required")
	}
	if interval <= 0 {
		interval = DefaultInterval(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "task %s already exists", name)
	}
	s.tasks[name] = &task{
		name:      name,
		fn:        fn,
		interval:  interval,
		maxErrors: DefaultMaxErrors,
	}

	s.log.Infow("Added task", "task", name, "interval", interval)
	return nil
}

// RemoveTask removes a task, waiting for its current run to finish
func (s *Scheduler) RemoveTask(name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrNotFound, "task %s not found", name)
	}
	var done chan struct{}
	if t.running {
		done = t.done
	}
	s.mu.Unlock()

	if done != nil {
		s.wait(name, done)
	}

	s.mu.Lock()
	if s.tasks[name] == t {
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	s.log.Infow("Removed task", "task", name)
	return nil
}

// Start launches the scheduling loop. Calling it again while running is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.taskCtx, s.cancelTasks = context.WithCancel(ctx)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.started = true

	go s.loop(loopCtx, s.loopDone)

	s.log.Infow("Task scheduler started", "tasks", len(s.tasks), "tick", s.tick)
	return nil
}

// Stop ends the loop and waits for running tasks, up to the wait timeout per task
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel, loopDone, cancelTasks := s.cancel, s.loopDone, s.cancelTasks
	s.mu.Unlock()

	cancel()
	<-loopDone

	s.mu.Lock()
	running := make(map[string]chan struct{})
	for name, t := range s.tasks {
		if t.running {
			running[name] = t.done
		}
	}
	s.mu.Unlock()

	var timedOut []string
	for name, done := range running {
		if !s.wait(name, done) {
			timedOut = append(timedOut, name)
		}
	}
	cancelTasks()

	s.log.Info("Task scheduler stopped")
	if len(timedOut) > 0 {
		sort.Strings(timedOut)
		return errors.Wrapf(errors.ErrTimeout, "tasks still running after stop: %v", timedOut)
	}
	return nil
}

// IsRunning returns whether the scheduling loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) wait(name string, done <-chan struct{}) bool {
	timer := time.NewTimer(s.waitTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		s.log.Warnw("Timeout waiting for task to complete", "task", name, "timeout", s.waitTimeout)
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.launchDue()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) launchDue() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	for _, t := range s.tasks {
		if !t.due(now) {
			continue
		}
		t.running = true
		t.lastRun = now
		t.done = make(chan struct{})
		go s.execute(s.taskCtx, t, t.done)
	}
}

func (s *Scheduler) execute(ctx context.Context, t *task, done chan struct{}) {
	start := time.Now()
	s.log.Debugw("Executing task", "task", t.name)

	err := s.call(ctx, t)
	metrics.RecordTaskExecution(t.name, time.Since(start), err)

	s.mu.Lock()
	t.running = false
	close(done)

	if err == nil {
		t.errorCount = 0
		s.mu.Unlock()
		s.log.Debugw("Task completed", "task", t.name, "duration", time.Since(start))
		return
	}

	t.errorCount++
	count, maxErrors := t.errorCount, t.maxErrors
	disabled := count >= maxErrors
	if disabled && s.tasks[t.name] == t {
		delete(s.tasks, t.name)
	}
	s.mu.Unlock()

	s.log.Errorw("Error executing task",
		"task", t.name,
		"error", err,
		"error_count", count,
		"max_errors", maxErrors,
	)
	if disabled {
		s.log.Errorw("Task exceeded maximum error count, disabling task",
			"task", t.name,
			"severity", "critical",
		)
	}
}

func (s *Scheduler) call(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrInternal, "task %s panicked: %v", t.name, r)
			s.log.Errorw("Task panicked", "task", t.name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	return t.fn(ctx)
}

// GetStatus reports every task by name
func (s *Scheduler) GetStatus() map[string]TaskStatus {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]TaskStatus, len(s.tasks))
	for name, t := range s.tasks {
		st := TaskStatus{
			IsRunning:  t.running,
			ErrorCount: t.errorCount,
			Interval:   int64(t.interval / time.Second),
			NextRun:    now.UTC(),
		}
		if !t.lastRun.IsZero() {
			last := t.lastRun.UTC()
			st.LastRun = &last
			st.NextRun = last.Add(t.interval)
		}
		status[name] = st
	}
	return status
}

// UpdateInterval changes how often a task runs
func (s *Scheduler) UpdateInterval(name string, interval time.Duration) error {
	if interval <= 0 {
		return errors.NewValidationError("interval", "must be positive", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "task %s not found", name)
	}
	t.interval = interval

	s.log.Infow("Updated task interval", "task", name, "interval", interval)
	return nil
}

// RunTaskNow makes a task due on the next tick
func (s *Scheduler) RunTaskNow(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "task %s not found", name)
	}
	if t.running {
		return errors.Wrapf(errors.ErrInvalidInput, "task %s is already running", name)
	}
	t.lastRun = time.Time{}

	s.log.Infow("Triggered immediate execution of task", "task", name)
	return nil
}
