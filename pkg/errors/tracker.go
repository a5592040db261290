package errors

import (
	"context"
)

// Tracker reports errors and notable events to an external service such as Sentry
type Tracker interface {
	// CaptureError sends an error to the tracking service
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage sends a message to the tracking service
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// SetUser associates the current scope with a messaging platform user
	SetUser(ctx context.Context, userID string, platform string, username string)

	// AddBreadcrumb records a step leading up to a possible error
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush waits for all pending events to be sent
	Flush(ctx context.Context) error
}

// Level represents the severity level of an error or message
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// String returns the string representation of the level
func (l Level) String() string {
	return string(l)
}

// AgentTags builds the standard tag set for an agent-scoped event
func AgentTags(component, agentID string) map[string]string {
	tags := map[string]string{"component": component}
	if agentID != "" {
		tags["agent_id"] = agentID
	}
	return tags
}
