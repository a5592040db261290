package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentErrorUnwrap(t *testing.T) {
	err := Wrap(NewAgentError("shimon", "process", ErrCompletion), "handle message")

	var agentErr *AgentError
	assert.True(t, As(err, &agentErr))
	assert.Equal(t, "shimon", agentErr.AgentID)
	assert.True(t, Is(err, ErrCompletion))
	assert.Equal(t, "handle message: agent shimon: process: completion failed", err.Error())
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"AgentNotFoundError":       Wrapf(ErrAgentNotFound, "agent %s", "x"),
		"AgentInactiveError":       ErrAgentInactive,
		"AgentInitializationError": NewAgentError("a", "init", ErrAgentInitialization),
		"KnowledgeBaseError":       NewAgentError("a", "update", ErrKnowledgeBase),
		"IntegrationError":         Wrap(ErrPlatformNotConfigured, "sms"),
		"ValidationError":          NewValidationError("agent_id", "too long", "x"),
		"AgentError":               NewAgentError("a", "", fmt.Errorf("boom")),
		"InternalError":            fmt.Errorf("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Kind(err), err.Error())
	}
	assert.Empty(t, Kind(nil))
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.NoError(t, m.ToError())

	m.Add(nil)
	m.Add(Wrap(ErrKnowledgeBase, "shimon"))
	m.Add(ErrTimeout)

	err := m.ToError()
	assert.Error(t, err)
	assert.True(t, Is(err, ErrTimeout))
	assert.True(t, Is(err, ErrKnowledgeBase))
	assert.Contains(t, err.Error(), "multiple errors (2)")
}
