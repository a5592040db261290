// Package integrations routes agent answers and webhooks to the messaging platforms.
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/integrations/settings"
	tgplatform "agentsplatform/internal/integrations/telegram"
	"agentsplatform/internal/integrations/whatsapp"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/retry"
	"agentsplatform/pkg/telegram"
	"agentsplatform/pkg/telegram/adapters/tgbotapi"
)

// QuotaCounter counts sends inside fixed windows (implemented by the redis adapter)
type QuotaCounter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Config selects which platforms are started
type Config struct {
	Telegram     config.TelegramConfig
	WhatsApp     config.WhatsAppConfig
	DefaultAgent string
}

// Option customizes a Manager
type Option func(*Manager)

// WithTelegramBot uses bot instead of connecting to the Bot API
func WithTelegramBot(bot telegram.Bot) Option {
	return func(m *Manager) { m.telegramBot = bot }
}

// WithWhatsAppOptions passes options through to the WhatsApp client
func WithWhatsAppOptions(opts ...whatsapp.Option) Option {
	return func(m *Manager) { m.whatsappOpts = append(m.whatsappOpts, opts...) }
}

// WithRetryPolicy sets the send retry policy on every platform
func WithRetryPolicy(p retry.Policy) Option {
	return func(m *Manager) { m.policy = &p }
}

// WithQuota enables per-platform minute/hour/day send budgets
func WithQuota(q QuotaCounter) Option {
	return func(m *Manager) { m.quota = q }
}

// Manager owns the platform clients
type Manager struct {
	cfg          Config
	telegramBot  telegram.Bot
	whatsappOpts []whatsapp.Option
	policy       *retry.Policy
	quota        QuotaCounter
	now          func() time.Time
	log          *logger.Logger

	mu          sync.Mutex
	initialized bool
	telegram    *tgplatform.Client
	whatsapp    *whatsapp.Client
	active      map[string]bool
}

// NewManager creates a manager. Clients are created by Initialize.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		active: make(map[string]bool),
		now:    time.Now,
		log:    logger.Get().With("component", "integration_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize creates a client for every configured platform. It runs once.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	if m.cfg.WhatsApp.AccessToken != "" && m.cfg.WhatsApp.PhoneNumberID != "" {
		opts := m.whatsappOpts
		if m.policy != nil {
			opts = append([]whatsapp.Option{whatsapp.WithRetryPolicy(*m.policy)}, opts...)
		}
		client, err := whatsapp.NewClient(m.cfg.WhatsApp, m.cfg.DefaultAgent, opts...)
		if err != nil {
			return integrationError(err, "failed to initialize whatsapp")
		}
		m.whatsapp = client
		m.active[string(message.PlatformWhatsApp)] = true
	}

	if m.cfg.Telegram.BotToken != "" {
		bot := m.telegramBot
		if bot == nil {
			b, err := tgbotapi.NewBot(tgbotapi.Config{
				Token:         m.cfg.Telegram.BotToken,
				RateLimitRate: settings.Telegram.RateLimit.PerSecond,
			}, m.log)
			if err != nil {
				return integrationError(err, "failed to initialize telegram")
			}
			bot = b
		}
		var opts []tgplatform.Option
		if m.policy != nil {
			opts = append(opts, tgplatform.WithRetryPolicy(*m.policy))
		}
		m.telegram = tgplatform.NewClient(bot, m.cfg.DefaultAgent, opts...)
		m.active[string(message.PlatformTelegram)] = true
	}

	if len(m.active) == 0 {
		return errors.Wrap(errors.ErrIntegration, "No platforms configured")
	}

	m.initialized = true
	m.log.Infow("Integration manager initialized", "platforms", m.platformsLocked())
	return nil
}

// ActivePlatforms lists the platforms with a client, sorted
func (m *Manager) ActivePlatforms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.platformsLocked()
}

func (m *Manager) platformsLocked() []string {
	out := make([]string, 0, len(m.active))
	for p := range m.active {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// clients is a snapshot of the platform clients taken under the lock
type clients struct {
	name     string
	telegram *tgplatform.Client
	whatsapp *whatsapp.Client
}

// platform initializes lazily and resolves an active platform by name
func (m *Manager) platform(ctx context.Context, platform string) (clients, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.initializeLocked(ctx); err != nil {
		return clients{}, err
	}
	name := strings.ToLower(strings.TrimSpace(platform))
	if !m.active[name] {
		return clients{}, fmt.Errorf("%w: %w: platform %s not configured", errors.ErrIntegration, errors.ErrPlatformNotConfigured, name)
	}
	return clients{name: name, telegram: m.telegram, whatsapp: m.whatsapp}, nil
}

// SendMessage formats resp for the platform and sends it to recipient.
// msgCtx is the inbound message context; platform_data.message_id becomes the reply target.
func (m *Manager) SendMessage(ctx context.Context, platform, recipient string, resp *message.Response, msgCtx map[string]interface{}) (interface{}, error) {
	c, err := m.platform(ctx, platform)
	if err != nil {
		return nil, err
	}
	if err := m.checkQuota(ctx, c.name); err != nil {
		return nil, err
	}

	switch c.name {
	case string(message.PlatformWhatsApp):
		out, err := c.whatsapp.SendMessage(ctx, recipient, whatsapp.FormatResponse(resp))
		if err != nil {
			return nil, integrationError(err, "failed to send message on whatsapp")
		}
		return out, nil

	case string(message.PlatformTelegram):
		text := tgplatform.FormatResponse(resp)
		c.telegram.SendTypingAction(ctx, recipient)

		var replyTo int
		if pd, ok := msgCtx[message.ContextPlatformData].(map[string]interface{}); ok {
			replyTo = message.AsInt(pd["message_id"])
		}
		keyboard, _ := telegram.KeyboardFrom(resp.Metadata["keyboard"])

		id, err := c.telegram.SendMessage(ctx, recipient, text, replyTo, keyboard)
		if err != nil {
			return nil, integrationError(err, "failed to send message on telegram")
		}
		return map[string]interface{}{"message_id": id}, nil
	}
	return nil, errors.Wrapf(errors.ErrPlatformNotConfigured, "platform %s", c.name)
}

// checkQuota enforces the platform's per-window budgets when a counter is attached
func (m *Manager) checkQuota(ctx context.Context, platform string) error {
	if m.quota == nil {
		return nil
	}
	limits := settings.Telegram.RateLimit
	if platform == string(message.PlatformWhatsApp) {
		limits = settings.WhatsApp.RateLimit
	}

	now := m.now().UTC()
	for window, limit := range limits.Windows() {
		key := fmt.Sprintf("quota:%s:%s:%d", platform, window, now.Truncate(window).Unix())
		n, err := m.quota.IncrementWindow(ctx, key, window)
		if err != nil {
			// Counting is advisory; a cache outage must not block replies
			m.log.Warnw("Quota counter unavailable", "platform", platform, "error", err)
			return nil
		}
		if limit > 0 && n > int64(limit) {
			return fmt.Errorf("%w: %w: %s quota of %d per %s reached", errors.ErrIntegration, errors.ErrRateLimitExceeded, platform, limit, window)
		}
	}
	return nil
}

// ProcessWebhook converts a platform webhook body into a message, or nil when
// the update carries nothing to answer. Telegram accepts a telegram.Update or raw JSON.
func (m *Manager) ProcessWebhook(ctx context.Context, platform string, data interface{}) (*message.Message, error) {
	c, err := m.platform(ctx, platform)
	if err != nil {
		return nil, err
	}

	switch c.name {
	case string(message.PlatformWhatsApp):
		raw, err := rawJSON(data)
		if err != nil {
			return nil, integrationError(err, "failed to process webhook from whatsapp")
		}
		return c.whatsapp.ProcessWebhook(raw), nil

	case string(message.PlatformTelegram):
		var update telegram.Update
		switch u := data.(type) {
		case telegram.Update:
			update = u
		case *telegram.Update:
			update = *u
		default:
			raw, err := rawJSON(data)
			if err == nil {
				err = json.Unmarshal(raw, &update)
			}
			if err != nil {
				return nil, integrationError(err, "failed to process webhook from telegram")
			}
		}
		return c.telegram.ProcessWebhook(update), nil
	}
	return nil, nil
}

// VerifyWhatsAppWebhook checks the subscription handshake
func (m *Manager) VerifyWhatsAppWebhook(ctx context.Context, mode, token, challenge string) (string, bool) {
	c, err := m.platform(ctx, string(message.PlatformWhatsApp))
	if err != nil {
		return "", false
	}
	return c.whatsapp.VerifyWebhook(mode, token, challenge)
}

// SetupWebhooks registers webhooks under baseURL and reports the outcome per platform
func (m *Manager) SetupWebhooks(ctx context.Context, baseURL string) (map[string]bool, error) {
	m.mu.Lock()
	if err := m.initializeLocked(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	tg, hasWhatsApp := m.telegram, m.whatsapp != nil
	m.mu.Unlock()

	results := make(map[string]bool)
	if hasWhatsApp {
		// Configured through the Meta developer portal
		results[string(message.PlatformWhatsApp)] = true
	}
	if tg != nil {
		url := strings.TrimRight(baseURL, "/") + "/webhook/telegram"
		results[string(message.PlatformTelegram)] = tg.SetWebhook(ctx, url, m.cfg.Telegram.SecretToken)
	}
	return results, nil
}

// SendErrorMessage sends the canned error text for key. Failures are only logged.
func (m *Manager) SendErrorMessage(ctx context.Context, platform, recipient, key string, msgCtx map[string]interface{}) {
	resp := &message.Response{
		Content:  settings.ErrorMessage(key),
		AgentID:  string(message.PlatformSystem),
		Metadata: map[string]interface{}{"error": true},
	}
	if _, err := m.SendMessage(ctx, platform, recipient, resp, msgCtx); err != nil {
		m.log.Errorw("Failed to send error message", "platform", platform, "recipient", recipient, "key", key, "error", err)
	}
}

// Close drops the platform clients. Initialize may be called again afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.telegram = nil
	m.whatsapp = nil
	m.active = make(map[string]bool)
	m.initialized = false
	m.log.Infow("Integration manager closed")
	return nil
}

func integrationError(err error, msg string) error {
	if errors.Is(err, errors.ErrIntegration) {
		return errors.Wrap(err, msg)
	}
	return fmt.Errorf("%w: %s: %w", errors.ErrIntegration, msg, err)
}

func rawJSON(data interface{}) ([]byte, error) {
	switch d := data.(type) {
	case []byte:
		return d, nil
	case json.RawMessage:
		return d, nil
	case string:
		return []byte(d), nil
	default:
		return json.Marshal(d)
	}
}
