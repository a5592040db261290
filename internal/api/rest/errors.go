package rest

import (
	"encoding/json"
	"net/http"

	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/utils"
)

// StatusCode maps platform errors to HTTP status codes
func StatusCode(err error) int {
	switch {
	case errors.Is(err, errors.ErrAgentNotFound),
		errors.Is(err, errors.ErrAgentInactive),
		errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the {error, message, timestamp} body for err
func WriteError(w http.ResponseWriter, log *logger.Logger, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Errorw("Request failed", "error", err)
	} else {
		log.Debugw("Request rejected", "status", code, "error", err)
	}
	WriteJSON(w, code, utils.FormatErrorMessage(err))
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
