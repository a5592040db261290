package message

import (
	"strconv"
	"time"

	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/utils"
)

// Platform identifies where a message came from
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformAPI      Platform = "api"
	PlatformSystem   Platform = "system"
)

// Context keys shared by the platform integrations
const (
	ContextGroupID      = "group_id"
	ContextPlatformData = "platform_data"
)

// Message is an inbound user message addressed to one agent
type Message struct {
	AgentID   string                 `json:"agent_id"`
	Content   string                 `json:"content"`
	Platform  Platform               `json:"platform"`
	UserID    string                 `json:"user_id"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// New creates a message stamped with the current UTC time
func New(agentID, content string, platform Platform, userID string) *Message {
	return &Message{
		AgentID:   agentID,
		Content:   content,
		Platform:  platform,
		UserID:    userID,
		Context:   map[string]interface{}{},
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the fields every agent relies on
func (m *Message) Validate() error {
	if err := utils.ValidateAgentID(m.AgentID); err != nil {
		return err
	}
	if m.Content == "" {
		return errors.NewValidationError("content", "must not be empty", m.Content)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// PlatformData returns context["platform_data"] or nil
func (m *Message) PlatformData() map[string]interface{} {
	if m.Context == nil {
		return nil
	}
	pd, _ := m.Context[ContextPlatformData].(map[string]interface{})
	return pd
}

// GroupID returns the chat / conversation id the message belongs to
func (m *Message) GroupID() string {
	if m.Context == nil {
		return ""
	}
	return AsString(m.Context[ContextGroupID])
}

// ReplyToMessageID returns platform_data.message_id as an int, 0 when absent
func (m *Message) ReplyToMessageID() int {
	return AsInt(m.PlatformData()["message_id"])
}

// Response is an agent's answer to a Message
type Response struct {
	Content         string                 `json:"content"`
	AgentID         string                 `json:"agent_id"`
	ProcessingTime  float64                `json:"processing_time"`
	ConfidenceScore *float64               `json:"confidence_score,omitempty"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// References returns metadata["references"] as strings
func (r *Response) References() []string {
	if r.Metadata == nil {
		return nil
	}
	switch refs := r.Metadata["references"].(type) {
	case []string:
		return refs
	case []interface{}:
		out := make([]string, 0, len(refs))
		for _, ref := range refs {
			if s, ok := ref.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AsInt converts JSON-decoded numbers and numeric strings to int.
// Values that went through a JSON round trip arrive as float64.
func AsInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// AsString stringifies ids that may be numeric
func AsString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}
