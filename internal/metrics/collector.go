package metrics

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agentsplatform/internal/adapters/kafka"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

const (
	// HealthyErrorRate is the error rate below which the system reports healthy
	HealthyErrorRate = 0.1

	// agentInactiveAfter drops agents from the collector on Cleanup
	agentInactiveAfter = 24 * time.Hour

	tracerName = "agentsplatform/internal/metrics"
)

// Health statuses reported by GetSystemHealth
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// SystemMetrics aggregates requests across all agents
type SystemMetrics struct {
	TotalRequests       int       `json:"total_requests"`
	SuccessfulRequests  int       `json:"successful_requests"`
	FailedRequests      int       `json:"failed_requests"`
	AverageResponseTime float64   `json:"average_response_time"`
	ErrorsLastHour      int       `json:"errors_last_hour"`
	ActiveAgents        int       `json:"active_agents"`
	Uptime              float64   `json:"uptime"`
	LastUpdated         time.Time `json:"last_updated"`
}

// AgentMetrics tracks a single agent as seen by the collector
type AgentMetrics struct {
	AgentID             string     `json:"agent_id"`
	TotalRequests       int        `json:"total_requests"`
	SuccessfulRequests  int        `json:"successful_requests"`
	FailedRequests      int        `json:"failed_requests"`
	AverageResponseTime float64    `json:"average_response_time"`
	LastActive          time.Time  `json:"last_active"`
	KnowledgeUpdateTime *time.Time `json:"knowledge_update_time,omitempty"`
	ErrorRate           float64    `json:"error_rate"`
	ConfidenceScore     float64    `json:"confidence_score"`
}

// SystemHealth is the summary served by the status endpoints
type SystemHealth struct {
	Status              string    `json:"status"`
	Uptime              float64   `json:"uptime"`
	ErrorRate           float64   `json:"error_rate"`
	AverageResponseTime float64   `json:"average_response_time"`
	ActiveAgents        int       `json:"active_agents"`
	TotalRequests       int       `json:"total_requests"`
	LastUpdated         time.Time `json:"last_updated"`
}

// Export is the document written by Collector.Export
type Export struct {
	Timestamp time.Time               `json:"timestamp"`
	System    SystemMetrics           `json:"system"`
	Agents    map[string]AgentMetrics `json:"agents"`
}

// SnapshotStore persists exported metrics (implemented by storage.Manager)
type SnapshotStore interface {
	StoreMetrics(ctx context.Context, data interface{}) error
}

// EventPublisher streams exported metrics (implemented by kafka.Producer)
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Option configures a Collector
type Option func(*Collector)

// WithSnapshotStore persists every export
func WithSnapshotStore(s SnapshotStore) Option {
	return func(c *Collector) { c.store = s }
}

// WithPublisher publishes every export to the metrics snapshot topic
func WithPublisher(p EventPublisher) Option {
	return func(c *Collector) { c.publisher = p }
}

// WithExportFile writes every export to path. Used in debug mode.
func WithExportFile(path string) Option {
	return func(c *Collector) { c.exportPath = path }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// Collector keeps running request statistics for the platform and its agents
type Collector struct {
	mu        sync.RWMutex
	system    SystemMetrics
	agents    map[string]*AgentMetrics
	startedAt time.Time

	store      SnapshotStore
	publisher  EventPublisher
	exportPath string

	now    func() time.Time
	tracer trace.Tracer
	log    *logger.Logger
}

// NewCollector creates a collector. Spans use the global otel provider.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		agents: make(map[string]*AgentMetrics),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
		log:    logger.Get().With("component", "metrics"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.now()
	c.system.LastUpdated = c.startedAt
	return c
}

// RecordRequest folds one processed request into system and agent statistics.
// errType labels the Prometheus error counter when the request failed.
func (c *Collector) RecordRequest(ctx context.Context, agentID string, success bool, responseTime float64, errType string) {
	_, span := c.tracer.Start(ctx, "record_request", trace.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.Bool("success", success),
		attribute.Float64("response_time", responseTime),
	))
	defer span.End()

	now := c.now()

	c.mu.Lock()
	c.system.TotalRequests++
	if success {
		c.system.SuccessfulRequests++
	} else {
		c.system.FailedRequests++
		c.system.ErrorsLastHour++
	}
	n := float64(c.system.TotalRequests)
	c.system.AverageResponseTime = (c.system.AverageResponseTime*(n-1) + responseTime) / n
	c.system.LastUpdated = now

	am := c.agentLocked(agentID, now)
	am.TotalRequests++
	if success {
		am.SuccessfulRequests++
	} else {
		am.FailedRequests++
	}
	an := float64(am.TotalRequests)
	am.AverageResponseTime = (am.AverageResponseTime*(an-1) + responseTime) / an
	am.ErrorRate = float64(am.FailedRequests) / an
	am.LastActive = now
	c.system.ActiveAgents = len(c.agents)
	c.mu.Unlock()

	RequestsTotal.WithLabelValues(agentID, boolLabel(success)).Inc()
	ResponseTime.WithLabelValues(agentID).Observe(responseTime)
	if !success {
		if errType == "" {
			errType = "unknown"
		}
		ErrorsTotal.WithLabelValues(agentID, errType).Inc()
		span.SetAttributes(attribute.String("error_type", errType))
	}
}

// RecordAgentUpdate stores the confidence of the agent's latest answer and its
// knowledge refresh time. A zero updateTime leaves the refresh time unchanged.
func (c *Collector) RecordAgentUpdate(agentID string, confidence float64, updateTime time.Time) {
	now := c.now()

	c.mu.Lock()
	am := c.agentLocked(agentID, now)
	am.ConfidenceScore = confidence
	if !updateTime.IsZero() {
		t := updateTime
		am.KnowledgeUpdateTime = &t
	}
	c.system.ActiveAgents = len(c.agents)
	c.mu.Unlock()

	AgentConfidence.WithLabelValues(agentID).Set(confidence)
}

// RecordKnowledgeRefresh stores when the agent's knowledge was last refreshed
func (c *Collector) RecordKnowledgeRefresh(agentID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	am := c.agentLocked(agentID, c.now())
	t := at
	am.KnowledgeUpdateTime = &t
	c.system.ActiveAgents = len(c.agents)
}

func (c *Collector) agentLocked(agentID string, now time.Time) *AgentMetrics {
	am, ok := c.agents[agentID]
	if !ok {
		am = &AgentMetrics{AgentID: agentID, LastActive: now}
		c.agents[agentID] = am
	}
	return am
}

// GetSystemHealth summarizes the collector state
func (c *Collector) GetSystemHealth() SystemHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	errorRate := 0.0
	if c.system.TotalRequests > 0 {
		errorRate = float64(c.system.FailedRequests) / float64(c.system.TotalRequests)
	}

	status := StatusHealthy
	if errorRate >= HealthyErrorRate {
		status = StatusDegraded
	}

	return SystemHealth{
		Status:              status,
		Uptime:              c.now().Sub(c.startedAt).Seconds(),
		ErrorRate:           errorRate,
		AverageResponseTime: c.system.AverageResponseTime,
		ActiveAgents:        len(c.agents),
		TotalRequests:       c.system.TotalRequests,
		LastUpdated:         c.system.LastUpdated,
	}
}

// GetAgentStats returns a copy of the agent's statistics, nil when unknown
func (c *Collector) GetAgentStats(agentID string) *AgentMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	am, ok := c.agents[agentID]
	if !ok {
		return nil
	}
	cp := *am
	return &cp
}

// AgentIDs lists the agents the collector knows about
func (c *Collector) AgentIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cleanup resets the hourly error count and forgets agents idle for over a day
func (c *Collector) Cleanup(ctx context.Context) error {
	now := c.now()

	c.mu.Lock()
	c.system.ErrorsLastHour = 0
	var dropped []string
	for id, am := range c.agents {
		if now.Sub(am.LastActive) > agentInactiveAfter {
			delete(c.agents, id)
			dropped = append(dropped, id)
		}
	}
	c.system.ActiveAgents = len(c.agents)
	c.mu.Unlock()

	if len(dropped) > 0 {
		c.log.Infow("Removed inactive agents from metrics", "agents", dropped)
	}
	return nil
}

// Snapshot copies the current statistics
func (c *Collector) Snapshot() Export {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	system := c.system
	system.Uptime = now.Sub(c.startedAt).Seconds()
	system.ActiveAgents = len(c.agents)

	agents := make(map[string]AgentMetrics, len(c.agents))
	for id, am := range c.agents {
		agents[id] = *am
	}

	return Export{Timestamp: now.UTC(), System: system, Agents: agents}
}

// Export writes a snapshot to every configured sink. Sink failures are
// collected; one failing sink does not stop the others.
func (c *Collector) Export(ctx context.Context) error {
	snap := c.Snapshot()
	errs := &errors.MultiError{}

	if c.store != nil {
		if err := c.store.StoreMetrics(ctx, snap); err != nil {
			errs.Add(errors.Wrap(err, "store metrics snapshot"))
		}
	}

	if c.publisher != nil {
		key := snap.Timestamp.Format(time.RFC3339)
		if err := c.publisher.Publish(ctx, kafka.TopicMetricsSnapshots, key, snap); err != nil {
			errs.Add(errors.Wrap(err, "publish metrics snapshot"))
		}
	}

	if c.exportPath != "" {
		if err := writeJSONFile(c.exportPath, snap); err != nil {
			errs.Add(errors.Wrapf(err, "write %s", c.exportPath))
		}
	}

	if err := errs.ToError(); err != nil {
		c.log.Errorw("Metrics export failed", "error", err)
		return err
	}

	c.log.Debugw("Metrics exported",
		"total_requests", snap.System.TotalRequests,
		"agents", len(snap.Agents),
	)
	return nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
