package tgbotapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/telegram"
)

// fakeBotAPI records form-encoded Bot API calls
type fakeBotAPI struct {
	mu    sync.Mutex
	calls map[string][]url.Values
	fail  map[string]string // method -> raw JSON reply
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls[method] = append(f.calls[method], r.PostForm)
	count := len(f.calls[method])
	reply, failing := f.fail[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		_, _ = w.Write([]byte(reply))
		return
	}
	switch method {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Shimon","username":"shimon_bot"}}`))
	case "sendMessage":
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":%s,"type":"private"}}}`,
			count+100, r.PostForm.Get("chat_id"))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeBotAPI) last(method string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newTestBot(t *testing.T) (*Bot, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{calls: map[string][]url.Values{}, fail: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := NewBot(Config{
		Token:      "123:abc",
		Endpoint:   srv.URL + "/bot%s/%s",
		HTTPClient: srv.Client(),
	}, logger.Get())
	require.NoError(t, err)
	return bot, fake
}

func TestNewBot(t *testing.T) {
	bot, fake := newTestBot(t)
	assert.Equal(t, "shimon_bot", bot.Username())
	assert.NotNil(t, fake.last("getMe"))

	_, err := NewBot(Config{}, logger.Get())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestBot_SendMessage(t *testing.T) {
	bot, fake := newTestBot(t)

	kb := telegram.NewInlineKeyboardMarkup(
		telegram.NewInlineKeyboardRow(telegram.NewInlineKeyboardButtonData("FAQ", "faq")),
	)
	id, err := bot.SendMessage(context.Background(), 42, "<b>hi</b>", telegram.MessageOptions{
		ParseMode:             telegram.ParseModeHTML,
		DisableWebPagePreview: true,
		ReplyToMessageID:      7,
		Keyboard:              &kb,
	})
	require.NoError(t, err)
	assert.Equal(t, 101, id)

	form := fake.last("sendMessage")
	require.NotNil(t, form)
	assert.Equal(t, "42", form.Get("chat_id"))
	assert.Equal(t, "<b>hi</b>", form.Get("text"))
	assert.Equal(t, "HTML", form.Get("parse_mode"))
	assert.Equal(t, "true", form.Get("disable_web_page_preview"))
	assert.Equal(t, "7", form.Get("reply_to_message_id"))

	var markup telegram.InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(form.Get("reply_markup")), &markup))
	assert.Equal(t, "faq", markup.InlineKeyboard[0][0].CallbackData)
}

func TestBot_SendMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  error
	}{
		{"rate limited", `{"ok":false,"error_code":429,"description":"Too Many Requests"}`, errors.ErrRateLimitExceeded},
		{"forbidden", `{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`, errors.ErrUnauthorized},
		{"bad request", `{"ok":false,"error_code":400,"description":"chat not found"}`, errors.ErrInvalidInput},
		{"server error", `{"ok":false,"error_code":500,"description":"Internal"}`, errors.ErrExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, fake := newTestBot(t)
			fake.fail["sendMessage"] = tt.reply

			_, err := bot.SendMessage(context.Background(), 1, "x", telegram.MessageOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestBot_SetWebhook(t *testing.T) {
	bot, fake := newTestBot(t)

	err := bot.SetWebhook(context.Background(), telegram.WebhookConfig{
		URL:            "https://agents.example.com/webhook/telegram",
		SecretToken:    "s3cret",
		AllowedUpdates: telegram.UpdateTypes,
		MaxConnections: 100,
	})
	require.NoError(t, err)

	form := fake.last("setWebhook")
	require.NotNil(t, form)
	assert.Equal(t, "https://agents.example.com/webhook/telegram", form.Get("url"))
	assert.Equal(t, "s3cret", form.Get("secret_token"))
	assert.Equal(t, "100", form.Get("max_connections"))
	assert.JSONEq(t, `["message","callback_query"]`, form.Get("allowed_updates"))

	assert.True(t, errors.Is(bot.SetWebhook(context.Background(), telegram.WebhookConfig{}), errors.ErrInvalidInput))
}

func TestBot_SendChatAction(t *testing.T) {
	bot, fake := newTestBot(t)

	require.NoError(t, bot.SendChatAction(context.Background(), 42, "typing"))
	form := fake.last("sendChatAction")
	require.NotNil(t, form)
	assert.Equal(t, "typing", form.Get("action"))
	assert.Equal(t, "42", form.Get("chat_id"))
}
