package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/integrations/settings"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/retry"
	"agentsplatform/pkg/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   telegram.MessageOptions
}

// fakeBot records calls and fails the first failures sends with failErr
type fakeBot struct {
	mu       sync.Mutex
	sent     []sentMessage
	actions  []string
	webhooks []telegram.WebhookConfig
	failures int
	failErr  error
	hookErr  error
}

func (f *fakeBot) SendMessage(_ context.Context, chatID int64, text string, opts telegram.MessageOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return 0, f.failErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, opts: opts})
	return len(f.sent), nil
}

func (f *fakeBot) SendChatAction(_ context.Context, _ int64, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeBot) SetWebhook(_ context.Context, cfg telegram.WebhookConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, cfg)
	return f.hookErr
}

var fastRetry = WithRetryPolicy(retry.Policy{Attempts: 3, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

func TestClient_SendMessage(t *testing.T) {
	t.Run("single part with reply and keyboard", func(t *testing.T) {
		bot := &fakeBot{}
		c := NewClient(bot, "shimon", fastRetry)
		kb := settings.MainMenuKeyboard()

		id, err := c.SendMessage(context.Background(), "42", "שלום", 7, &kb)
		require.NoError(t, err)
		assert.Equal(t, 1, id)

		require.Len(t, bot.sent, 1)
		got := bot.sent[0]
		assert.Equal(t, int64(42), got.chatID)
		assert.Equal(t, telegram.ParseModeHTML, got.opts.ParseMode)
		assert.True(t, got.opts.DisableWebPagePreview)
		assert.Equal(t, 7, got.opts.ReplyToMessageID)
		assert.NotNil(t, got.opts.Keyboard)
	})

	t.Run("long text is split", func(t *testing.T) {
		bot := &fakeBot{}
		c := NewClient(bot, "shimon", fastRetry)
		kb := settings.CategoriesKeyboard()
		text := strings.Repeat("מילה ", 1800) // 9000 runes

		id, err := c.SendMessage(context.Background(), "-100", text, 3, &kb)
		require.NoError(t, err)

		require.Len(t, bot.sent, 3)
		assert.Equal(t, 3, id)
		assert.Equal(t, 3, bot.sent[0].opts.ReplyToMessageID)
		assert.Nil(t, bot.sent[0].opts.Keyboard)
		assert.Zero(t, bot.sent[2].opts.ReplyToMessageID)
		assert.NotNil(t, bot.sent[2].opts.Keyboard)
		assert.True(t, strings.HasSuffix(bot.sent[0].text, "[חלק 1/3]"))
	})

	t.Run("retries transient failures", func(t *testing.T) {
		bot := &fakeBot{failures: 2, failErr: errors.ErrExternal}
		c := NewClient(bot, "shimon", fastRetry)

		_, err := c.SendMessage(context.Background(), "1", "hi", 0, nil)
		require.NoError(t, err)
		assert.Len(t, bot.sent, 1)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		bot := &fakeBot{failures: 5, failErr: errors.ErrExternal}
		c := NewClient(bot, "shimon", fastRetry)

		_, err := c.SendMessage(context.Background(), "1", "hi", 0, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrIntegration))
		assert.True(t, errors.Is(err, errors.ErrExternal))
		assert.Equal(t, 2, bot.failures)
	})

	t.Run("does not retry bad requests", func(t *testing.T) {
		bot := &fakeBot{failures: 5, failErr: errors.ErrInvalidInput}
		c := NewClient(bot, "shimon", fastRetry)

		_, err := c.SendMessage(context.Background(), "1", "hi", 0, nil)
		require.Error(t, err)
		assert.Equal(t, 4, bot.failures)
	})

	t.Run("rejects non numeric chat", func(t *testing.T) {
		c := NewClient(&fakeBot{}, "shimon", fastRetry)
		_, err := c.SendMessage(context.Background(), "abc", "hi", 0, nil)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})
}

func TestClient_SendTypingAction(t *testing.T) {
	bot := &fakeBot{}
	c := NewClient(bot, "shimon")

	c.SendTypingAction(context.Background(), "42")
	c.SendTypingAction(context.Background(), "not-a-chat")
	assert.Equal(t, []string{"typing"}, bot.actions)
}

func TestClient_SetWebhook(t *testing.T) {
	bot := &fakeBot{}
	c := NewClient(bot, "shimon")

	assert.True(t, c.SetWebhook(context.Background(), "https://x/webhook/telegram", "s3cret"))
	require.Len(t, bot.webhooks, 1)
	assert.Equal(t, "s3cret", bot.webhooks[0].SecretToken)
	assert.Equal(t, 100, bot.webhooks[0].MaxConnections)
	assert.Equal(t, []string{"message", "callback_query"}, bot.webhooks[0].AllowedUpdates)

	bot.hookErr = errors.ErrExternal
	assert.False(t, c.SetWebhook(context.Background(), "https://x/webhook/telegram", ""))
}

func TestClient_ProcessWebhook(t *testing.T) {
	c := NewClient(&fakeBot{}, "shimon")

	t.Run("text message", func(t *testing.T) {
		msg := c.ProcessWebhook(telegram.Update{
			Message: &telegram.Message{
				MessageID: 11,
				Text:      "מה זה עיקול?",
				From:      &telegram.User{ID: 42, Username: "dana", LanguageCode: "he"},
				Chat:      &telegram.Chat{ID: -100, Type: telegram.ChatGroup},
			},
		})
		require.NotNil(t, msg)
		assert.Equal(t, "shimon", msg.AgentID)
		assert.Equal(t, message.PlatformTelegram, msg.Platform)
		assert.Equal(t, "42", msg.UserID)
		assert.Equal(t, "-100", msg.GroupID())
		assert.Equal(t, 11, msg.ReplyToMessageID())

		pd := msg.PlatformData()
		assert.Equal(t, "group", pd["chat_type"])
		assert.Equal(t, "dana", pd["username"])
		assert.Equal(t, "he", pd["language"])
		assert.Equal(t, true, pd["is_group"])
	})

	t.Run("callback query", func(t *testing.T) {
		msg := c.ProcessWebhook(telegram.Update{
			CallbackQuery: &telegram.CallbackQuery{
				ID:   "cb1",
				Data: "category_debt",
				From: &telegram.User{ID: 42},
				Message: &telegram.Message{
					MessageID: 12,
					Chat:      &telegram.Chat{ID: 42, Type: telegram.ChatPrivate},
				},
			},
		})
		require.NotNil(t, msg)
		assert.Equal(t, "category_debt", msg.Content)
		assert.Equal(t, "42", msg.GroupID())

		pd := msg.PlatformData()
		assert.Equal(t, "cb1", pd["callback_query_id"])
		assert.Equal(t, 12, pd["message_id"])
		assert.Equal(t, true, pd["is_callback"])
	})

	t.Run("ignored updates", func(t *testing.T) {
		assert.Nil(t, c.ProcessWebhook(telegram.Update{}))
		assert.Nil(t, c.ProcessWebhook(telegram.Update{Message: &telegram.Message{
			From: &telegram.User{ID: 1}, Chat: &telegram.Chat{ID: 1},
		}}))
		assert.Nil(t, c.ProcessWebhook(telegram.Update{CallbackQuery: &telegram.CallbackQuery{ID: "x"}}))
	})
}

func TestFormatResponse(t *testing.T) {
	resp := &message.Response{
		Content: "  *חשוב*: יש להגיש _בקשה_ תוך 20 יום  ",
		Metadata: map[string]interface{}{
			"references": []interface{}{"ע\"א 123/20 - https://example.org/r?a=1&b=2"},
		},
	}

	got := FormatResponse(resp)
	assert.True(t, strings.HasPrefix(got, "<b>חשוב</b>: יש להגיש <i>בקשה</i> תוך 20 יום"))
	assert.Contains(t, got, "\n\n<b>מקורות ואסמכתאות:</b>\n• ע\"א 123/20 - https://example.org/r?a=1&amp;b=2")
	assert.True(t, strings.HasSuffix(got, settings.MessageFooter))

	plain := FormatResponse(&message.Response{Content: "hi"})
	assert.Equal(t, "hi"+settings.MessageFooter, plain)
}
