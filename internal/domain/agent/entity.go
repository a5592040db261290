package agent

import (
	"time"

	"github.com/lib/pq"
)

// DefaultModel is used when a config leaves Model empty
const DefaultModel = "gpt-4"

// Config is the persisted definition of an agent
type Config struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Description  string         `db:"description" json:"description"`
	Model        string         `db:"model" json:"model"`
	Capabilities pq.StringArray `db:"capabilities" json:"capabilities"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// NewConfig returns a config with the platform defaults applied
func NewConfig(id, name, description string, capabilities ...string) *Config {
	now := time.Now().UTC()
	return &Config{
		ID:           id,
		Name:         name,
		Description:  description,
		Model:        DefaultModel,
		Capabilities: capabilities,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Metrics are the in-memory request counters of a running agent
type Metrics struct {
	AgentID             string    `json:"agent_id"`
	TotalRequests       int       `json:"total_requests"`
	SuccessfulRequests  int       `json:"successful_requests"`
	FailedRequests      int       `json:"failed_requests"`
	AverageResponseTime float64   `json:"average_response_time"`
	LastActive          time.Time `json:"last_active"`
	UptimePercentage    float64   `json:"uptime_percentage"`
	ErrorRate           float64   `json:"error_rate"`
}

// NewMetrics returns zeroed metrics for an agent
func NewMetrics(agentID string) Metrics {
	return Metrics{
		AgentID:          agentID,
		LastActive:       time.Now().UTC(),
		UptimePercentage: 100,
	}
}

// Record folds one request outcome into the counters
func (m *Metrics) Record(success bool, seconds float64) {
	m.TotalRequests++
	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}

	n := float64(m.TotalRequests)
	m.AverageResponseTime = (m.AverageResponseTime*(n-1) + seconds) / n
	m.ErrorRate = float64(m.FailedRequests) / n
	m.LastActive = time.Now().UTC()
}

// SystemStatus is the platform-wide status report
type SystemStatus struct {
	Version          string             `json:"version"`
	Environment      string             `json:"environment"`
	ActiveAgents     int                `json:"active_agents"`
	TotalRequests24h int                `json:"total_requests_24h"`
	SystemUptime     float64            `json:"system_uptime"`
	UptimeHuman      string             `json:"uptime_human"`
	AgentsStatus     map[string]Metrics `json:"agents_status"`
}
