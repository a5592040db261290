package tgbotapi

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/telegram"
)

var _ telegram.Bot = (*Bot)(nil)

// Bot implements telegram.Bot on top of go-telegram-bot-api
type Bot struct {
	api         *tgbotapi.BotAPI
	log         *logger.Logger
	rateLimiter *rate.Limiter
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	Debug          bool
	Endpoint       string // Bot API endpoint format, defaults to tgbotapi.APIEndpoint
	HTTPTimeout    time.Duration
	HTTPClient     *http.Client // overrides HTTPTimeout when set
	RateLimitBurst int          // Rate limiter burst (default: 30)
	RateLimitRate  int          // Rate limiter per second (default: 30)
}

// NewBot creates a new Telegram bot instance. It calls getMe to validate the token.
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 30
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	log = log.With("component", "telegram_bot")
	log.Infow("Authorized on telegram", "account", api.Self.UserName)

	return &Bot{
		api:         api,
		log:         log,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
	}, nil
}

// Username returns the bot account name
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendMessage sends one message and returns its id
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, opts telegram.MessageOptions) (int, error) {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(err, "rate limiter error")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = opts.ParseMode
	msg.DisableWebPagePreview = opts.DisableWebPagePreview
	if opts.ReplyToMessageID > 0 {
		msg.ReplyToMessageID = opts.ReplyToMessageID
	}
	if opts.Keyboard != nil {
		msg.ReplyMarkup = convertKeyboard(*opts.Keyboard)
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Debugw("Failed to send message", "chat_id", chatID, "error", err)
		return 0, classifyError(err, "failed to send telegram message")
	}
	return sent.MessageID, nil
}

// SendChatAction shows a chat action such as tgbotapi.ChatTyping
func (b *Bot) SendChatAction(ctx context.Context, chatID int64, action string) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter error")
	}
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return classifyError(err, "failed to send chat action")
	}
	return nil
}

// SetWebhook registers the webhook. WebhookConfig in the library predates
// secret_token, so the call is made through MakeRequest.
func (b *Bot) SetWebhook(ctx context.Context, cfg telegram.WebhookConfig) error {
	if cfg.URL == "" {
		return errors.Wrap(errors.ErrInvalidInput, "webhook url is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := tgbotapi.Params{"url": cfg.URL}
	params.AddNonEmpty("secret_token", cfg.SecretToken)
	params.AddNonZero("max_connections", cfg.MaxConnections)
	if len(cfg.AllowedUpdates) > 0 {
		if err := params.AddInterface("allowed_updates", cfg.AllowedUpdates); err != nil {
			return errors.Wrap(err, "failed to encode allowed updates")
		}
	}

	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return classifyError(err, "failed to set webhook")
	}

	b.log.Infow("Webhook registered", "url", cfg.URL, "allowed_updates", cfg.AllowedUpdates)
	return nil
}

// classifyError maps Bot API failures onto platform sentinels
func classifyError(err error, msg string) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return errors.Wrapf(errors.ErrRateLimitExceeded, "%s: %s", msg, apiErr.Message)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return errors.Wrapf(errors.ErrUnauthorized, "%s: %s", msg, apiErr.Message)
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return errors.Wrapf(errors.ErrInvalidInput, "%s: %s", msg, apiErr.Message)
		}
	}
	return errors.Wrapf(errors.ErrExternal, "%s: %v", msg, err)
}

// convertKeyboard converts telegram.InlineKeyboardMarkup to tgbotapi.InlineKeyboardMarkup
func convertKeyboard(keyboard telegram.InlineKeyboardMarkup) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard.InlineKeyboard))
	for _, row := range keyboard.InlineKeyboard {
		tgRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			tgButton := tgbotapi.InlineKeyboardButton{Text: button.Text}
			if button.CallbackData != "" {
				data := button.CallbackData
				tgButton.CallbackData = &data
			}
			if button.URL != "" {
				url := button.URL
				tgButton.URL = &url
			}
			tgRow = append(tgRow, tgButton)
		}
		rows = append(rows, tgRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
