package consumers

import (
	"context"
	"time"

	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/integrations/settings"
	"agentsplatform/internal/metrics"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/utils"
)

const (
	directionInbound  = "inbound"
	directionOutbound = "outbound"
)

// Processor answers messages (implemented by the agent manager)
type Processor interface {
	ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error)
}

// Replier delivers answers on the originating platform (implemented by the integrations manager)
type Replier interface {
	SendMessage(ctx context.Context, platform, recipient string, resp *message.Response, msgCtx map[string]interface{}) (interface{}, error)
	SendErrorMessage(ctx context.Context, platform, recipient, key string, msgCtx map[string]interface{})
}

// Recorder receives request statistics (implemented by metrics.Collector)
type Recorder interface {
	RecordRequest(ctx context.Context, agentID string, success bool, responseTime float64, errType string)
	RecordAgentUpdate(agentID string, confidence float64, updateTime time.Time)
}

// Handler runs one inbound platform message through its agent and replies
type Handler struct {
	agents    Processor
	replier   Replier
	collector Recorder
	log       *logger.Logger
}

// NewHandler creates an inbound message handler. collector may be nil.
func NewHandler(agents Processor, replier Replier, collector Recorder) *Handler {
	return &Handler{
		agents:    agents,
		replier:   replier,
		collector: collector,
		log:       logger.Get().With("component", "inbound_handler"),
	}
}

// Handle processes msg and sends the reply. On failure the user gets the
// localized error message and the error is returned.
func (h *Handler) Handle(ctx context.Context, msg *message.Message) error {
	msg.Content = utils.SanitizeInput(msg.Content)
	platform := string(msg.Platform)
	recipient := replyRecipient(msg)
	metrics.RecordPlatformMessage(platform, directionInbound, nil)

	if err := msg.Validate(); err != nil {
		h.log.Warnw("Dropping invalid inbound message", "platform", platform, "user_id", msg.UserID, "error", err)
		return err
	}

	start := time.Now()
	resp, err := h.agents.ProcessMessage(ctx, msg)
	elapsed := time.Since(start).Seconds()

	if h.collector != nil {
		h.collector.RecordRequest(ctx, msg.AgentID, err == nil, elapsed, errors.Kind(err))
	}

	if err != nil {
		h.log.Errorw("Failed to process inbound message",
			"agent_id", msg.AgentID,
			"platform", platform,
			"user_id", msg.UserID,
			"error", err,
		)
		h.replier.SendErrorMessage(ctx, platform, recipient, errorKey(err), msg.Context)
		return err
	}

	if h.collector != nil && resp.ConfidenceScore != nil {
		h.collector.RecordAgentUpdate(msg.AgentID, *resp.ConfidenceScore, time.Time{})
	}

	_, err = h.replier.SendMessage(ctx, platform, recipient, resp, msg.Context)
	metrics.RecordPlatformMessage(platform, directionOutbound, err)
	if err != nil {
		h.log.Errorw("Failed to deliver reply",
			"agent_id", msg.AgentID,
			"platform", platform,
			"recipient", recipient,
			"error", err,
		)
		if errors.Is(err, errors.ErrRateLimitExceeded) {
			h.replier.SendErrorMessage(ctx, platform, recipient, settings.ErrorRateLimit, msg.Context)
		}
		return err
	}

	h.log.Debugw("Replied to inbound message",
		"agent_id", msg.AgentID,
		"platform", platform,
		"processing_time", resp.ProcessingTime,
	)
	return nil
}

// replyRecipient prefers the chat the message came from over the sender
func replyRecipient(msg *message.Message) string {
	if g := msg.GroupID(); g != "" {
		return g
	}
	return msg.UserID
}

func errorKey(err error) string {
	switch {
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return settings.ErrorRateLimit
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return settings.ErrorNetwork
	default:
		return settings.ErrorProcessing
	}
}
