package telegram

import "context"

// Parse modes accepted by sendMessage
const (
	ParseModeHTML     = "HTML"
	ParseModeMarkdown = "Markdown"
)

// UpdateTypes the platform subscribes to
var UpdateTypes = []string{"message", "callback_query"}

// Bot abstracts the Bot API calls the platform makes (for dependency injection)
type Bot interface {
	// SendMessage sends one message and returns its id
	SendMessage(ctx context.Context, chatID int64, text string, opts MessageOptions) (int, error)

	// SendChatAction shows a status such as "typing" in the chat
	SendChatAction(ctx context.Context, chatID int64, action string) error

	// SetWebhook registers the webhook URL with Telegram
	SetWebhook(ctx context.Context, cfg WebhookConfig) error
}

// MessageOptions defines options for sending messages
type MessageOptions struct {
	// Keyboard for inline buttons
	Keyboard *InlineKeyboardMarkup

	// ParseMode (Markdown, HTML, MarkdownV2)
	ParseMode string

	// DisableWebPagePreview disables link previews
	DisableWebPagePreview bool

	// ReplyToMessageID replies to specific message
	ReplyToMessageID int
}

// WebhookConfig describes a setWebhook call
type WebhookConfig struct {
	URL            string
	SecretToken    string
	AllowedUpdates []string
	MaxConnections int
}
