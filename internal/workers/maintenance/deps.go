// Package maintenance holds the periodic platform tasks run by the scheduler
package maintenance

import (
	"context"
	"time"

	"agentsplatform/internal/agents"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/metrics"
)

// AgentPool is the part of the agent manager the tasks need
type AgentPool interface {
	UpdateAllKnowledge(ctx context.Context) error
	Agents() []agents.Agent
}

// Storage is the part of the storage manager the tasks need
type Storage interface {
	CleanupOldData(ctx context.Context, days int) error
	Health(ctx context.Context) error
}

// Collector is the part of the metrics collector the tasks need
type Collector interface {
	GetSystemHealth() metrics.SystemHealth
	Cleanup(ctx context.Context) error
	Export(ctx context.Context) error
	RecordKnowledgeRefresh(agentID string, at time.Time)
}

// Sender delivers a response on a messaging platform
type Sender interface {
	SendMessage(ctx context.Context, platform, recipient string, resp *message.Response, msgCtx map[string]interface{}) (interface{}, error)
}
