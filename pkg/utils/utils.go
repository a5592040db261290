// Package utils holds small helpers shared by the API and the agents.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"agentsplatform/pkg/errors"
)

// MaxAgentIDLength bounds agent identifiers
const MaxAgentIDLength = 32

// GenerateRequestID derives a 16 hex char id from the content and a timestamp
func GenerateRequestID(content string, ts time.Time) string {
	sum := sha256.Sum256([]byte(content + ts.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

// SanitizeInput trims surrounding whitespace
func SanitizeInput(text string) string {
	return strings.TrimSpace(text)
}

// ErrorBody is the JSON shape of API errors
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// FormatErrorMessage builds the API error body for err
func FormatErrorMessage(err error) ErrorBody {
	return ErrorBody{
		Error:     errors.Kind(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ValidateAgentID accepts non-empty alphanumeric ids up to MaxAgentIDLength runes
func ValidateAgentID(id string) error {
	if id == "" {
		return errors.NewValidationError("agent_id", "must not be empty", id)
	}
	if len([]rune(id)) > MaxAgentIDLength {
		return errors.NewValidationError("agent_id", "too long", id)
	}
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return errors.NewValidationError("agent_id", "must be alphanumeric", id)
		}
	}
	return nil
}
