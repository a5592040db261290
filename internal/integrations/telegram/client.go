// Package telegram turns agent answers into Bot API messages and Bot API
// updates into platform messages.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/integrations/settings"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/retry"
	"agentsplatform/pkg/telegram"
)

const referencesHeader = "\n\n<b>מקורות ואסמכתאות:</b>\n"

// Client sends agent answers through a telegram.Bot
type Client struct {
	bot          telegram.Bot
	defaultAgent string
	policy       retry.Policy
	splitLength  int
	log          *logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithRetryPolicy overrides the per-message retry policy
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient creates a client. Inbound messages are addressed to defaultAgent.
func NewClient(bot telegram.Bot, defaultAgent string, opts ...Option) *Client {
	c := &Client{
		bot:          bot,
		defaultAgent: defaultAgent,
		policy:       retry.NewPolicy(),
		splitLength:  settings.Telegram.SplitLength,
		log:          logger.Get().With("component", "telegram_integration", "platform", "telegram"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends text to the chat, split into parts when too long.
// replyTo applies to the first part and keyboard to the last.
// It returns the id of the last message sent.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string, replyTo int, keyboard *telegram.InlineKeyboardMarkup) (int, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return 0, err
	}

	parts := telegram.SplitMessage(text, c.splitLength)
	var lastID int
	for i, part := range parts {
		opts := telegram.MessageOptions{
			ParseMode:             telegram.ParseModeHTML,
			DisableWebPagePreview: true,
		}
		if i == 0 {
			opts.ReplyToMessageID = replyTo
		}
		if i == len(parts)-1 {
			opts.Keyboard = keyboard
		}

		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			sentID, err := c.bot.SendMessage(ctx, id, part, opts)
			if err != nil {
				if errors.Is(err, errors.ErrInvalidInput) || errors.Is(err, errors.ErrUnauthorized) {
					return retry.Permanent(err)
				}
				c.log.Warnw("Telegram send failed, retrying", "chat_id", chatID, "part", i+1, "error", err)
				return err
			}
			lastID = sentID
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("%w: telegram send to %s: %w", errors.ErrIntegration, chatID, err)
		}
	}
	return lastID, nil
}

// SendTypingAction shows "typing" in the chat. Failures are only logged.
func (c *Client) SendTypingAction(ctx context.Context, chatID string) {
	id, err := parseChatID(chatID)
	if err != nil {
		c.log.Warnw("Skipping typing action", "chat_id", chatID, "error", err)
		return
	}
	if err := c.bot.SendChatAction(ctx, id, "typing"); err != nil {
		c.log.Warnw("Failed to send typing action", "chat_id", chatID, "error", err)
	}
}

// SetWebhook registers url with Telegram and reports success
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) bool {
	err := c.bot.SetWebhook(ctx, telegram.WebhookConfig{
		URL:            url,
		SecretToken:    secretToken,
		AllowedUpdates: telegram.UpdateTypes,
		MaxConnections: 100,
	})
	if err != nil {
		c.log.Errorw("Error setting webhook", "url", url, "error", err)
		return false
	}
	return true
}

// ProcessWebhook converts an update into a platform message.
// Updates that carry neither text nor a callback yield nil.
func (c *Client) ProcessWebhook(update telegram.Update) *message.Message {
	if update.CallbackQuery != nil {
		return c.processCallback(update.CallbackQuery)
	}

	m := update.Message
	if m == nil || m.Text == "" || m.From == nil || m.Chat == nil {
		return nil
	}

	msg := message.New(c.defaultAgent, m.Text, message.PlatformTelegram, strconv.FormatInt(m.From.ID, 10))
	msg.Context[message.ContextGroupID] = strconv.FormatInt(m.Chat.ID, 10)
	msg.Context[message.ContextPlatformData] = map[string]interface{}{
		"message_id": m.MessageID,
		"chat_type":  m.Chat.Type,
		"username":   m.From.Username,
		"language":   m.From.LanguageCode,
		"is_group":   m.Chat.IsGroup(),
	}
	return msg
}

func (c *Client) processCallback(cq *telegram.CallbackQuery) *message.Message {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		c.log.Warnw("Callback query without origin message", "callback_id", cq.ID)
		return nil
	}

	msg := message.New(c.defaultAgent, cq.Data, message.PlatformTelegram, strconv.FormatInt(cq.From.ID, 10))
	msg.Context[message.ContextGroupID] = strconv.FormatInt(cq.Message.Chat.ID, 10)
	msg.Context[message.ContextPlatformData] = map[string]interface{}{
		"callback_query_id": cq.ID,
		"message_id":        cq.Message.MessageID,
		"is_callback":       true,
	}
	return msg
}

// FormatResponse renders an answer as Telegram HTML with references and footer
func FormatResponse(resp *message.Response) string {
	var b strings.Builder
	b.WriteString(telegram.FormatHTML(strings.TrimSpace(resp.Content)))

	if refs := resp.References(); len(refs) > 0 {
		b.WriteString(referencesHeader)
		for i, ref := range refs {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("• ")
			b.WriteString(telegram.EscapeHTML(ref))
		}
	}

	b.WriteString(settings.Telegram.Footer)
	return b.String()
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("chat_id", "must be a numeric telegram chat id", chatID)
	}
	return id, nil
}
