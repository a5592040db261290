package maintenance

import (
	"context"
	"time"

	"agentsplatform/internal/metrics"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
)

// KnowledgeUpdater refreshes the knowledge of every active agent
type KnowledgeUpdater struct {
	*workers.BaseWorker
	agents    AgentPool
	collector Collector
}

// NewKnowledgeUpdater creates the knowledge_update task
func NewKnowledgeUpdater(pool AgentPool, collector Collector, interval time.Duration) *KnowledgeUpdater {
	return &KnowledgeUpdater{
		BaseWorker: workers.NewBaseWorker(workers.TaskKnowledgeUpdate, interval),
		agents:     pool,
		collector:  collector,
	}
}

// Run executes one refresh of all agents
func (w *KnowledgeUpdater) Run(ctx context.Context) error {
	start := time.Now()
	err := w.agents.UpdateAllKnowledge(ctx)

	failed := failedAgents(err)
	for _, a := range w.agents.Agents() {
		if !a.Active() {
			continue
		}
		if agentErr, ok := failed[a.ID()]; ok {
			metrics.RecordKnowledgeUpdate(a.ID(), agentErr)
			continue
		}
		metrics.RecordKnowledgeUpdate(a.ID(), nil)
		if w.collector != nil {
			w.collector.RecordKnowledgeRefresh(a.ID(), time.Now().UTC())
		}
	}

	if err != nil {
		return errors.Wrap(err, "knowledge update")
	}
	w.Log().Infow("Knowledge update completed", "duration", time.Since(start))
	return nil
}

// failedAgents maps agent ids to their failure. A failure not tied to an
// agent is reported under the empty id.
func failedAgents(err error) map[string]error {
	out := map[string]error{}
	if err == nil {
		return out
	}

	errs := []error{err}
	var multi *errors.MultiError
	if errors.As(err, &multi) {
		errs = multi.Errors
	}
	for _, e := range errs {
		var agentErr *errors.AgentError
		if errors.As(e, &agentErr) {
			out[agentErr.AgentID] = e
			continue
		}
		out[""] = e
	}
	return out
}
