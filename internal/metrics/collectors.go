package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/pkg/logger"
)

// UsageSource exposes accumulated model usage (implemented by ai.UsageTracker)
type UsageSource interface {
	Snapshot() map[string]ai.ModelUsage
}

// CustomCollector reports database and AI usage gauges at scrape time
type CustomCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB
	usage    UsageSource

	knowledgeDocs   *prometheus.Desc
	interactions24h *prometheus.Desc
	aiTokens        *prometheus.Desc
	aiCost          *prometheus.Desc
	aiRequests      *prometheus.Desc
}

// NewCustomCollector creates a collector. Either source may be nil.
func NewCustomCollector(postgres *sqlx.DB, usage UsageSource) *CustomCollector {
	return &CustomCollector{
		log:      logger.Get().With("component", "metrics_collector"),
		postgres: postgres,
		usage:    usage,

		knowledgeDocs: prometheus.NewDesc(
			"agents_knowledge_documents",
			"Stored legal documents by agent and type",
			[]string{"agent_id", "type"}, nil,
		),
		interactions24h: prometheus.NewDesc(
			"agents_interactions_24h",
			"Interactions stored in the last 24h by agent",
			[]string{"agent_id"}, nil,
		),
		aiTokens: prometheus.NewDesc(
			"agents_ai_tokens",
			"Tokens used since start by model",
			[]string{"model", "type"}, // type: prompt|completion
			nil,
		),
		aiCost: prometheus.NewDesc(
			"agents_ai_cost_usd",
			"AI cost in USD since start by model",
			[]string{"model"}, nil,
		),
		aiRequests: prometheus.NewDesc(
			"agents_ai_requests",
			"Model calls since start",
			[]string{"model"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.knowledgeDocs
	ch <- c.interactions24h
	ch <- c.aiTokens
	ch <- c.aiCost
	ch <- c.aiRequests
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectKnowledge(ctx, ch)
		c.collectInteractions(ctx, ch)
	}
	c.collectUsage(ch)
}

func (c *CustomCollector) collectKnowledge(ctx context.Context, ch chan<- prometheus.Metric) {
	type row struct {
		AgentID string `db:"agent_id"`
		Type    string `db:"type"`
		Count   int    `db:"count"`
	}

	var rows []row
	err := c.postgres.SelectContext(ctx, &rows, `
		SELECT agent_id, type, COUNT(*) AS count
		FROM legal_data
		GROUP BY agent_id, type`)
	if err != nil {
		c.log.Warnw("Failed to collect knowledge document metric", "error", err)
		return
	}

	for _, r := range rows {
		ch <- prometheus.MustNewConstMetric(c.knowledgeDocs, prometheus.GaugeValue, float64(r.Count), r.AgentID, r.Type)
	}
}

func (c *CustomCollector) collectInteractions(ctx context.Context, ch chan<- prometheus.Metric) {
	type row struct {
		AgentID string `db:"agent_id"`
		Count   int    `db:"count"`
	}

	var rows []row
	err := c.postgres.SelectContext(ctx, &rows, `
		SELECT agent_id, COUNT(*) AS count
		FROM interactions
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY agent_id`)
	if err != nil {
		c.log.Warnw("Failed to collect interaction metric", "error", err)
		return
	}

	for _, r := range rows {
		ch <- prometheus.MustNewConstMetric(c.interactions24h, prometheus.GaugeValue, float64(r.Count), r.AgentID)
	}
}

func (c *CustomCollector) collectUsage(ch chan<- prometheus.Metric) {
	if c.usage == nil {
		return
	}
	for model, u := range c.usage.Snapshot() {
		cost, _ := u.CostUSD.Float64()
		ch <- prometheus.MustNewConstMetric(c.aiTokens, prometheus.GaugeValue, float64(u.PromptTokens), model, "prompt")
		ch <- prometheus.MustNewConstMetric(c.aiTokens, prometheus.GaugeValue, float64(u.CompletionTokens), model, "completion")
		ch <- prometheus.MustNewConstMetric(c.aiCost, prometheus.GaugeValue, cost, model)
		ch <- prometheus.MustNewConstMetric(c.aiRequests, prometheus.GaugeValue, float64(u.Requests), model)
	}
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
