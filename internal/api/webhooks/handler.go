// Package webhooks receives messaging platform webhooks and queues the messages they carry
package webhooks

import (
	"context"
	"io"
	"net/http"

	"agentsplatform/internal/consumers"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/telegram"
)

const maxPayloadBytes = 1 << 20

// Integrations converts platform payloads into messages (implemented by the integrations manager)
type Integrations interface {
	ProcessWebhook(ctx context.Context, platform string, data interface{}) (*message.Message, error)
	VerifyWhatsAppWebhook(ctx context.Context, mode, token, challenge string) (string, bool)
}

// Handler serves /webhook/telegram and /webhook/whatsapp
type Handler struct {
	integrations Integrations
	queue        consumers.Queue
	telegram     *telegram.WebhookHandler
	log          *logger.Logger
}

// NewHandler creates the webhook handler. telegramSecret is checked against
// the secret token header of every Telegram update.
func NewHandler(integrations Integrations, queue consumers.Queue, telegramSecret string) *Handler {
	log := logger.Get().With("component", "webhooks")
	h := &Handler{
		integrations: integrations,
		queue:        queue,
		log:          log,
	}
	h.telegram = telegram.NewWebhookHandler(h.handleTelegramUpdate, telegramSecret, log)
	return h
}

// Register mounts the webhook routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /webhook/telegram", h.telegram)
	mux.HandleFunc("GET /webhook/whatsapp", h.handleWhatsAppVerify)
	mux.HandleFunc("POST /webhook/whatsapp", h.handleWhatsAppUpdate)
}

func (h *Handler) handleTelegramUpdate(ctx context.Context, update telegram.Update) {
	msg, err := h.integrations.ProcessWebhook(ctx, string(message.PlatformTelegram), update)
	if err != nil {
		h.log.Errorw("Failed to process Telegram update", "update_id", update.UpdateID, "error", err)
		return
	}
	h.enqueue(ctx, msg)
}

func (h *Handler) handleWhatsAppVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := h.integrations.VerifyWhatsAppWebhook(r.Context(), q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		h.log.Warnw("WhatsApp webhook verification failed", "mode", q.Get("hub.mode"), "remote", r.RemoteAddr)
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

func (h *Handler) handleWhatsAppUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	msg, err := h.integrations.ProcessWebhook(r.Context(), string(message.PlatformWhatsApp), body)
	if err != nil {
		h.log.Errorw("Failed to process WhatsApp update", "error", err)
	} else {
		h.enqueue(r.Context(), msg)
	}

	// Meta retries anything but 200
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (h *Handler) enqueue(ctx context.Context, msg *message.Message) {
	if msg == nil {
		return
	}
	if err := h.queue.Enqueue(ctx, msg); err != nil {
		h.log.Errorw("Failed to queue inbound message",
			"platform", msg.Platform,
			"user_id", msg.UserID,
			"error", err,
		)
	}
}
