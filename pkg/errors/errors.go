package errors

import (
	"errors"
	"fmt"
)

// Generic error kinds shared across layers

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates missing or wrong credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates an API rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrExternal indicates a failure reported by a remote API
	ErrExternal = errors.New("external service error")
)

// Agent platform errors

var (
	// ErrAgentNotFound indicates no agent is registered under the id
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentInactive indicates the agent exists but is switched off
	ErrAgentInactive = errors.New("agent not active")

	// ErrAgentInitialization indicates an agent failed to start
	ErrAgentInitialization = errors.New("agent initialization failed")

	// ErrKnowledgeBase indicates knowledge could not be loaded or refreshed
	ErrKnowledgeBase = errors.New("knowledge base error")

	// ErrCompletion indicates the language model call failed
	ErrCompletion = errors.New("completion failed")
)

// Messaging platform errors

var (
	// ErrIntegration indicates a messaging platform call failed
	ErrIntegration = errors.New("integration error")

	// ErrPlatformNotConfigured indicates the platform has no client
	ErrPlatformNotConfigured = errors.New("platform not configured")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AgentError ties a failure to the agent that produced it
type AgentError struct {
	AgentID string
	Op      string
	Err     error
}

// Error implements the error interface
func (e *AgentError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("agent %s: %v", e.AgentID, e.Err)
	}
	return fmt.Sprintf("agent %s: %s: %v", e.AgentID, e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new agent error
func NewAgentError(agentID, op string, err error) *AgentError {
	return &AgentError{AgentID: agentID, Op: op, Err: err}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap makes every validation error match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes every collected error to errors.Is / errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Kind names the platform error class of err, used in API error bodies
func Kind(err error) string {
	var agentErr *AgentError
	switch {
	case err == nil:
		return ""
	case Is(err, ErrAgentNotFound):
		return "AgentNotFoundError"
	case Is(err, ErrAgentInactive):
		return "AgentInactiveError"
	case Is(err, ErrAgentInitialization):
		return "AgentInitializationError"
	case Is(err, ErrKnowledgeBase):
		return "KnowledgeBaseError"
	case Is(err, ErrRateLimitExceeded):
		return "RateLimitError"
	case Is(err, ErrUnauthorized):
		return "AuthenticationError"
	case Is(err, ErrCompletion):
		return "CompletionError"
	case Is(err, ErrIntegration), Is(err, ErrPlatformNotConfigured):
		return "IntegrationError"
	case Is(err, ErrInvalidInput):
		return "ValidationError"
	case Is(err, ErrNotFound):
		return "NotFoundError"
	case As(err, &agentErr):
		return "AgentError"
	default:
		return "InternalError"
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
