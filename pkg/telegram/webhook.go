package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"agentsplatform/pkg/logger"
)

// SecretTokenHeader carries the secret_token given to setWebhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler handles incoming Telegram webhook requests (framework-level)
type WebhookHandler struct {
	updateHandler func(context.Context, Update)
	secretToken   string
	log           *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
// The updateHandler is called off the request goroutine for each accepted update.
// An empty secretToken disables the header check.
func NewWebhookHandler(updateHandler func(context.Context, Update), secretToken string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		updateHandler: updateHandler,
		secretToken:   secretToken,
		log:           log.With("component", "telegram_webhook"),
	}
}

// ServeHTTP implements http.Handler interface
func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wh.log.Warnw("Invalid webhook request method", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if wh.secretToken != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(wh.secretToken)) != 1 {
			wh.log.Warnw("Rejected webhook with bad secret token", "remote", r.RemoteAddr)
			wh.sendErrorResponse(w, "Invalid secret token", http.StatusUnauthorized)
			return
		}
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		wh.log.Warnw("Failed to decode webhook update", "error", err)
		wh.sendErrorResponse(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if update.Message != nil {
		update.Message.ParseCommand()
	}

	wh.log.Debugw("Received webhook update",
		"update_id", update.UpdateID,
		"has_message", update.HasMessage(),
		"has_callback", update.HasCallback(),
	)

	// The request context ends with the response
	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				wh.log.Errorw("Panic in update handler",
					"panic", rec,
					"update_id", update.UpdateID,
				)
			}
		}()

		wh.updateHandler(ctx, update)
	}()

	// Always acknowledge, otherwise Telegram redelivers
	wh.sendSuccessResponse(w)
}

func (wh *WebhookHandler) sendSuccessResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": true,
	})
}

func (wh *WebhookHandler) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":          false,
		"error":       message,
		"description": message,
	})
}
