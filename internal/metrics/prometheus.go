package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agents_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"agent_id", "success"},
	)

	ResponseTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agents_response_time_seconds",
			Help:    "Response time in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"agent_id"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agents_errors_total",
			Help: "Total number of errors",
		},
		[]string{"agent_id", "error_type"},
	)

	// Knowledge metrics
	KnowledgeUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agents_knowledge_updates_total",
			Help: "Knowledge base refreshes by outcome",
		},
		[]string{"agent_id", "status"}, // status: success|error
	)

	AgentConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agents_confidence_score",
			Help: "Confidence score of the latest answer",
		},
		[]string{"agent_id"},
	)

	// Scheduler metrics
	TaskExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agents_task_executions_total",
			Help: "Total number of scheduled task executions",
		},
		[]string{"task", "status"}, // status: success|error
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agents_task_duration_seconds",
			Help:    "Scheduled task duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 600},
		},
		[]string{"task"},
	)

	TaskLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agents_task_last_run_timestamp",
			Help: "Unix timestamp of last task execution",
		},
		[]string{"task"},
	)

	// Messaging metrics
	PlatformMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agents_platform_messages_total",
			Help: "Messages handled per platform and direction",
		},
		[]string{"platform", "direction", "status"}, // direction: inbound|outbound
	)

	StatusStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agents_status_stream_connections",
			Help: "Open status websocket connections",
		},
	)
)

var registerOnce sync.Once

// Init registers the platform metrics with the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			ResponseTime,
			ErrorsTotal,
			KnowledgeUpdates,
			AgentConfidence,
			TaskExecutions,
			TaskDuration,
			TaskLastRun,
			PlatformMessages,
			StatusStreams,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTaskExecution records a scheduled task run
func RecordTaskExecution(task string, duration time.Duration, err error) {
	TaskExecutions.WithLabelValues(task, status(err)).Inc()
	TaskDuration.WithLabelValues(task).Observe(duration.Seconds())
	TaskLastRun.WithLabelValues(task).SetToCurrentTime()
}

// RecordKnowledgeUpdate records a knowledge refresh
func RecordKnowledgeUpdate(agentID string, err error) {
	KnowledgeUpdates.WithLabelValues(agentID, status(err)).Inc()
}

// RecordPlatformMessage records an inbound or outbound platform message
func RecordPlatformMessage(platform, direction string, err error) {
	PlatformMessages.WithLabelValues(platform, direction, status(err)).Inc()
}
