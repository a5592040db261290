// Package whatsapp talks to the WhatsApp Business Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/integrations/settings"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/retry"
)

const referencesHeader = "\n\nמקורות:\n"

// Client sends text messages through the Graph API
type Client struct {
	cfg          config.WhatsAppConfig
	defaultAgent string
	http         *http.Client
	limiter      *rate.Limiter
	policy       retry.Policy
	log          *logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryPolicy overrides the per-message retry policy
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient creates a client for the configured phone number
func NewClient(cfg config.WhatsAppConfig, defaultAgent string, opts ...Option) (*Client, error) {
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		return nil, errors.Wrap(errors.ErrPlatformNotConfigured, "whatsapp access token and phone number id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v16.0"
	}

	perSecond := settings.WhatsApp.RateLimit.PerSecond
	c := &Client{
		cfg:          cfg,
		defaultAgent: defaultAgent,
		http:         &http.Client{Timeout: settings.Processing.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(perSecond), perSecond),
		policy:       retry.NewPolicy(),
		log:          logger.Get().With("component", "whatsapp_integration", "platform", "whatsapp"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

type textBody struct {
	Body string `json:"body"`
}

type outboundMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	Type             string   `json:"type"`
	To               string   `json:"to"`
	Text             textBody `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendMessage sends content to recipient, split into 1500 character parts.
// It returns the decoded API response for the last part.
func (c *Client) SendMessage(ctx context.Context, recipient, content string) (map[string]interface{}, error) {
	if recipient == "" {
		return nil, errors.NewValidationError("recipient", "must not be empty", recipient)
	}

	var last map[string]interface{}
	for _, part := range SplitMessage(content, settings.WhatsApp.SplitLength) {
		payload := outboundMessage{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			Type:             "text",
			To:               recipient,
			Text:             textBody{Body: part},
		}

		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			resp, err := c.post(ctx, payload)
			if err != nil {
				c.log.Warnw("WhatsApp send failed", "recipient", recipient, "error", err)
				return err
			}
			last = resp
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return last, nil
}

func (c *Client) post(ctx context.Context, payload outboundMessage) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "rate limiter error"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "encode whatsapp payload"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "build whatsapp request"))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: whatsapp request failed: %w", errors.ErrIntegration, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read whatsapp response: %w", errors.ErrIntegration, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		err := errors.Wrapf(errors.ErrIntegration, "WhatsApp API error: %s", apiErr.Error.Message)
		// Client errors other than throttling will fail the same way again
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: decode whatsapp response: %w", errors.ErrIntegration, err))
	}
	return out, nil
}

// VerifyWebhook checks a subscription handshake. It returns the challenge to echo when the token matches.
func (c *Client) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode != "" && mode != "subscribe" {
		return "", false
	}
	if c.cfg.VerifyToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(c.cfg.VerifyToken)) != 1 {
		c.log.Warnw("WhatsApp webhook verification failed", "mode", mode)
		return "", false
	}
	return challenge, true
}

// WebhookPayload is the subset of a Cloud API notification the platform reads
type WebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Conversation *struct {
					ID string `json:"id"`
				} `json:"conversation,omitempty"`
				Messages []InboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// InboundMessage is one user message inside a notification
type InboundMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *textBody `json:"text,omitempty"`
}

// ProcessWebhook converts a notification body into a platform message.
// Status-only notifications and malformed bodies yield nil.
func (c *Client) ProcessWebhook(data []byte) *message.Message {
	var payload WebhookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.log.Warnw("Invalid webhook data format", "error", err)
		return nil
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		c.log.Warnw("Invalid webhook data format", "error", "missing entry or changes")
		return nil
	}

	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil
	}

	in := value.Messages[0]
	if in.Text == nil || in.From == "" {
		c.log.Infow("Ignoring non-text whatsapp message", "type", in.Type, "message_id", in.ID)
		return nil
	}

	msg := message.New(c.defaultAgent, in.Text.Body, message.PlatformWhatsApp, in.From)
	if value.Conversation != nil {
		msg.Context[message.ContextGroupID] = value.Conversation.ID
	}
	msg.Context[message.ContextPlatformData] = map[string]interface{}{
		"message_id": in.ID,
		"timestamp":  in.Timestamp,
		"type":       in.Type,
	}
	return msg
}

// FormatResponse renders an answer as plain text with references and footer
func FormatResponse(resp *message.Response) string {
	content := strings.TrimSpace(resp.Content)
	if refs := resp.References(); len(refs) > 0 {
		content += referencesHeader + strings.Join(refs, "\n")
	}
	return content + settings.WhatsApp.Footer
}

// SplitMessage cuts content into parts of at most max runes, breaking after the
// last ". " in each window. Parts are trimmed and numbered like Telegram parts.
func SplitMessage(content string, max int) []string {
	runes := []rune(content)
	if max <= 0 || len(runes) <= max {
		return []string{content}
	}

	total := int(math.Ceil(float64(len(runes)) / float64(max)))
	var parts []string
	pos := 0
	for pos < len(runes) {
		end := pos + max
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			window := string(runes[pos:end])
			if i := strings.LastIndex(window, ". "); i != -1 {
				end = pos + utf8.RuneCountInString(window[:i]) + 1
			}
		}

		part := strings.TrimSpace(string(runes[pos:end]))
		parts = append(parts, part+fmt.Sprintf("\n[חלק %d/%d]", len(parts)+1, total))
		pos = end
	}
	return parts
}
