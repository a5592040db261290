package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/agents"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/metrics"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
)

type stubAgent struct {
	id     string
	active bool
}

func (a *stubAgent) ID() string            { return a.id }
func (a *stubAgent) Name() string          { return a.id }
func (a *stubAgent) Description() string   { return "" }
func (a *stubAgent) Active() bool          { return a.active }
func (a *stubAgent) SetActive(active bool) { a.active = active }
func (a *stubAgent) Initialize(ctx context.Context) error {
	return nil
}
func (a *stubAgent) ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error) {
	return nil, nil
}
func (a *stubAgent) UpdateKnowledge(ctx context.Context) error { return nil }
func (a *stubAgent) Metrics() agent.Metrics                    { return agent.NewMetrics(a.id) }

type fakePool struct {
	agents []agents.Agent
	err    error
}

func (p *fakePool) UpdateAllKnowledge(ctx context.Context) error { return p.err }
func (p *fakePool) Agents() []agents.Agent                       { return p.agents }

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) CleanupOldData(ctx context.Context, days int) error {
	args := m.Called(ctx, days)
	return args.Error(0)
}

func (m *mockStorage) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, platform, recipient string, resp *message.Response, msgCtx map[string]interface{}) (interface{}, error) {
	args := m.Called(ctx, platform, recipient, resp, msgCtx)
	return args.Get(0), args.Error(1)
}

type fakeCollector struct {
	mu         sync.Mutex
	health     metrics.SystemHealth
	cleanups   int
	exports    int
	exportErr  error
	refreshed  map[string]time.Time
	cleanupErr error
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		health:    metrics.SystemHealth{Status: metrics.StatusHealthy},
		refreshed: map[string]time.Time{},
	}
}

func (c *fakeCollector) GetSystemHealth() metrics.SystemHealth { return c.health }

func (c *fakeCollector) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups++
	return c.cleanupErr
}

func (c *fakeCollector) Export(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exports++
	return c.exportErr
}

func (c *fakeCollector) RecordKnowledgeRefresh(agentID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed[agentID] = at
}

type fakeTracker struct {
	messages []string
	levels   []errors.Level
}

func (t *fakeTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	return nil
}

func (t *fakeTracker) CaptureMessage(ctx context.Context, msg string, level errors.Level, tags map[string]string) error {
	t.messages = append(t.messages, msg)
	t.levels = append(t.levels, level)
	return nil
}

func (t *fakeTracker) SetUser(ctx context.Context, userID, platform, username string) {}

func (t *fakeTracker) AddBreadcrumb(ctx context.Context, msg, category string, level errors.Level, data map[string]interface{}) {
}

func (t *fakeTracker) Flush(ctx context.Context) error { return nil }

func TestKnowledgeUpdater_Run(t *testing.T) {
	collector := newFakeCollector()
	pool := &fakePool{agents: []agents.Agent{
		&stubAgent{id: "shimon", active: true},
		&stubAgent{id: "paused", active: false},
	}}

	w := NewKnowledgeUpdater(pool, collector, 0)
	assert.Equal(t, workers.TaskKnowledgeUpdate, w.Name())

	require.NoError(t, w.Run(context.Background()))
	assert.Contains(t, collector.refreshed, "shimon")
	assert.NotContains(t, collector.refreshed, "paused")
}

func TestKnowledgeUpdater_PartialFailure(t *testing.T) {
	collector := newFakeCollector()
	multi := &errors.MultiError{}
	multi.Add(errors.NewAgentError("broken", "update_knowledge", errors.ErrKnowledgeBase))

	pool := &fakePool{
		agents: []agents.Agent{
			&stubAgent{id: "shimon", active: true},
			&stubAgent{id: "broken", active: true},
		},
		err: multi.ToError(),
	}

	err := NewKnowledgeUpdater(pool, collector, time.Hour).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrKnowledgeBase))
	assert.Contains(t, collector.refreshed, "shimon")
	assert.NotContains(t, collector.refreshed, "broken")
}

func TestFailedAgents(t *testing.T) {
	assert.Empty(t, failedAgents(nil))

	single := failedAgents(errors.NewAgentError("shimon", "", errors.ErrTimeout))
	assert.Contains(t, single, "shimon")

	plain := failedAgents(errors.ErrInternal)
	assert.Contains(t, plain, "")
}

func TestMetricsCleanup_Run(t *testing.T) {
	storage := &mockStorage{}
	storage.On("CleanupOldData", mock.Anything, 30).Return(nil)
	collector := newFakeCollector()

	w := NewMetricsCleanup(storage, collector, 0, 0)
	require.NoError(t, w.Run(context.Background()))

	storage.AssertExpectations(t)
	assert.Equal(t, 1, collector.cleanups)
}

func TestMetricsCleanup_StorageErrorStillCleansCollector(t *testing.T) {
	storage := &mockStorage{}
	storage.On("CleanupOldData", mock.Anything, 7).Return(errors.ErrUnavailable)
	collector := newFakeCollector()

	err := NewMetricsCleanup(storage, collector, 7, time.Hour).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	assert.Equal(t, 1, collector.cleanups)
}

func TestHealthCheck_Run(t *testing.T) {
	ctx := context.Background()

	storage := &mockStorage{}
	storage.On("Health", mock.Anything).Return(nil).Once()
	collector := newFakeCollector()
	collector.health.Status = metrics.StatusDegraded

	w := NewHealthCheck(storage, collector, 0)
	require.NoError(t, w.Run(ctx))

	storage.On("Health", mock.Anything).Return(errors.ErrUnavailable).Once()
	err := w.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	storage.AssertExpectations(t)
}

func TestErrorNotifier_BelowThreshold(t *testing.T) {
	collector := newFakeCollector()
	collector.health.ErrorRate = 0.05
	tracker := &fakeTracker{}
	sender := &mockSender{}

	w := NewErrorNotifier(collector, tracker, sender, ErrorNotifierConfig{AdminIDs: []int64{42}})
	require.NoError(t, w.Run(context.Background()))

	assert.Empty(t, tracker.messages)
	sender.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestErrorNotifier_AboveThreshold(t *testing.T) {
	collector := newFakeCollector()
	collector.health = metrics.SystemHealth{Status: metrics.StatusDegraded, ErrorRate: 0.25, TotalRequests: 40, Uptime: 7200}
	tracker := &fakeTracker{}
	sender := &mockSender{}
	sender.On("SendMessage", mock.Anything, "telegram", "42", mock.AnythingOfType("*message.Response"), mock.Anything).
		Return(map[string]interface{}{"message_id": 1}, nil)
	sender.On("SendMessage", mock.Anything, "telegram", "43", mock.Anything, mock.Anything).
		Return(nil, errors.ErrIntegration)

	w := NewErrorNotifier(collector, tracker, sender, ErrorNotifierConfig{Threshold: 0.1, AdminIDs: []int64{42, 43}})
	err := w.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegration))
	require.Len(t, tracker.messages, 1)
	assert.Contains(t, tracker.messages[0], "25.0%")
	assert.Equal(t, errors.LevelWarning, tracker.levels[0])
	sender.AssertExpectations(t)
}

func TestExportAndCollectorCleanup(t *testing.T) {
	collector := newFakeCollector()

	require.NoError(t, NewMetricsExporter(collector, 0).Run(context.Background()))
	require.NoError(t, NewCollectorCleanup(collector, 0).Run(context.Background()))

	assert.Equal(t, 1, collector.exports)
	assert.Equal(t, 1, collector.cleanups)
}

func TestRegister(t *testing.T) {
	s := workers.NewScheduler()
	d := Deps{
		Agents:    &fakePool{},
		Storage:   &mockStorage{},
		Collector: newFakeCollector(),
	}
	cfg := config.WorkerConfig{
		KnowledgeUpdateInterval: time.Hour,
		MetricsExportInterval:   5 * time.Minute,
	}

	require.NoError(t, Register(s, d, cfg))

	status := s.GetStatus()
	for _, name := range []string{
		workers.TaskKnowledgeUpdate,
		workers.TaskMetricsCleanup,
		workers.TaskHealthCheck,
		workers.TaskErrorNotification,
		workers.TaskMetricsExport,
		workers.TaskCollectorCleanup,
	} {
		assert.Contains(t, status, name)
	}
	assert.Equal(t, int64(86400), status[workers.TaskMetricsCleanup].Interval)
	assert.Equal(t, int64(300), status[workers.TaskMetricsExport].Interval)

	err := Register(s, d, cfg)
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))
}
