package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/telegram"
)

type fakeIntegrations struct {
	mu        sync.Mutex
	payloads  []interface{}
	err       error
	verifyTok string
}

func (f *fakeIntegrations) ProcessWebhook(ctx context.Context, platform string, data interface{}) (*message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, data)
	if f.err != nil {
		return nil, f.err
	}
	return message.New("shimon", "שלום", message.Platform(platform), "1001"), nil
}

func (f *fakeIntegrations) VerifyWhatsAppWebhook(ctx context.Context, mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == f.verifyTok {
		return challenge, true
	}
	return "", false
}

type memQueue struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (q *memQueue) Enqueue(ctx context.Context, msg *message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

func newMux(integrations Integrations, queue *memQueue, secret string) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(integrations, queue, secret).Register(mux)
	return mux
}

const telegramUpdate = `{"update_id":1,"message":{"message_id":5,"chat":{"id":1001,"type":"private"},"text":"שלום"}}`

func TestTelegramWebhook_SecretToken(t *testing.T) {
	integrations := &fakeIntegrations{}
	queue := &memQueue{}
	mux := newMux(integrations, queue, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(telegramUpdate))
	req.Header.Set(telegram.SecretTokenHeader, "wrong")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(telegramUpdate))
	req.Header.Set(telegram.SecretTokenHeader, "s3cret")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// updates are handled off the request goroutine
	assert.Eventually(t, func() bool { return queue.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, message.PlatformTelegram, queue.msgs[0].Platform)
}

func TestTelegramWebhook_ProcessingErrorNotQueued(t *testing.T) {
	integrations := &fakeIntegrations{err: errors.ErrPlatformNotConfigured}
	queue := &memQueue{}
	mux := newMux(integrations, queue, "")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(telegramUpdate)))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Eventually(t, func() bool {
		integrations.mu.Lock()
		defer integrations.mu.Unlock()
		return len(integrations.payloads) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, queue.len())
}

func TestWhatsAppVerify(t *testing.T) {
	mux := newMux(&fakeIntegrations{verifyTok: "verify-me"}, &memQueue{}, "")

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{name: "valid", query: "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", status: http.StatusOK, body: "12345"},
		{name: "wrong token", query: "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", status: http.StatusForbidden},
		{name: "wrong mode", query: "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?"+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
			}
		})
	}
}

func TestWhatsAppUpdate(t *testing.T) {
	integrations := &fakeIntegrations{}
	queue := &memQueue{}
	mux := newMux(integrations, queue, "")

	payload := `{"object":"whatsapp_business_account","entry":[]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	require.Equal(t, 1, queue.len())
	assert.Equal(t, message.PlatformWhatsApp, queue.msgs[0].Platform)
	require.Len(t, integrations.payloads, 1)
	assert.Equal(t, []byte(payload), integrations.payloads[0])
}

func TestWhatsAppUpdate_AlwaysAcknowledges(t *testing.T) {
	queue := &memQueue{}
	mux := newMux(&fakeIntegrations{err: errors.ErrInvalidInput}, queue, "")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("not json")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, queue.len())
}
