package agents

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/interaction"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
)

type fakeChat struct {
	mu       sync.Mutex
	requests []ai.ChatRequest
	reply    string
	err      error
}

func (f *fakeChat) Complete(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ChatResponse{Content: f.reply}, nil
}

type fakeKnowledge struct {
	kb  map[string]json.RawMessage
	err error
}

func (f *fakeKnowledge) LoadKnowledgeBase(context.Context, string) (map[string]json.RawMessage, error) {
	return f.kb, f.err
}

type fakePrompts struct {
	prompt string
	err    error
}

func (f *fakePrompts) SystemPrompt(context.Context, string) (string, error) {
	return f.prompt, f.err
}

type fakeInteractions struct {
	stored []*interaction.Interaction
	err    error
}

func (f *fakeInteractions) StoreInteraction(_ context.Context, i *interaction.Interaction) error {
	f.stored = append(f.stored, i)
	return f.err
}

func newTestBase(deps Deps) *BaseAgent {
	return NewBaseAgent(agent.NewConfig("tester", "Tester", "a test agent"), deps)
}

func TestBaseAgent_Initialize(t *testing.T) {
	t.Run("loads knowledge and prompt", func(t *testing.T) {
		b := newTestBase(Deps{
			Knowledge: &fakeKnowledge{kb: map[string]json.RawMessage{"faq": json.RawMessage(`{"q":"a"}`)}},
			Prompts:   &fakePrompts{prompt: "custom prompt"},
		})
		require.NoError(t, b.Initialize(context.Background()))

		v, ok := b.Knowledge("faq")
		require.True(t, ok)
		assert.JSONEq(t, `{"q":"a"}`, string(v))
		assert.Equal(t, "custom prompt", b.SystemPrompt())
	})

	t.Run("falls back to default prompt", func(t *testing.T) {
		b := newTestBase(Deps{
			Knowledge: &fakeKnowledge{},
			Prompts:   &fakePrompts{err: errors.ErrNotFound},
		})
		require.NoError(t, b.Initialize(context.Background()))
		assert.Equal(t, "You are Tester, a test agent", b.SystemPrompt())
	})

	t.Run("knowledge failure is an initialization error", func(t *testing.T) {
		b := newTestBase(Deps{Knowledge: &fakeKnowledge{err: errors.New("db down")}})
		err := b.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrAgentInitialization))
		assert.True(t, errors.Is(err, errors.ErrKnowledgeBase))

		var agentErr *errors.AgentError
		require.True(t, errors.As(err, &agentErr))
		assert.Equal(t, "tester", agentErr.AgentID)
	})
}

func TestBaseAgent_Complete(t *testing.T) {
	chat := &fakeChat{reply: "answer"}
	b := newTestBase(Deps{Chat: chat, Prompts: &fakePrompts{prompt: "sys"}})
	require.NoError(t, b.Initialize(context.Background()))

	out, err := b.Complete(context.Background(), []ai.Message{ai.UserMessage("hi")}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, agent.DefaultModel, req.Model)
	assert.Equal(t, DefaultTemperature, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ai.SystemMessage("sys"), req.Messages[0])

	// an explicit system message is kept as is
	_, err = b.Complete(context.Background(), []ai.Message{ai.SystemMessage("other"), ai.UserMessage("hi")}, 0.3, 100)
	require.NoError(t, err)
	assert.Len(t, chat.requests[1].Messages, 2)
	assert.Equal(t, "other", chat.requests[1].Messages[0].Content)
	assert.Equal(t, 0.3, chat.requests[1].Temperature)
}

func TestBaseAgent_CompleteError(t *testing.T) {
	b := newTestBase(Deps{Chat: &fakeChat{err: errors.ErrRateLimitExceeded}})

	_, err := b.Complete(context.Background(), []ai.Message{ai.UserMessage("hi")}, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCompletion))
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
}

func TestBaseAgent_StoreInteraction(t *testing.T) {
	store := &fakeInteractions{err: errors.New("insert failed")}
	b := newTestBase(Deps{Interactions: store})

	msg := message.New("tester", "hello", message.PlatformAPI, "u1")
	// the store error must not surface
	b.StoreInteraction(context.Background(), msg, &message.Response{Content: "hi", AgentID: "tester"})

	require.Len(t, store.stored, 1)
	got := store.stored[0]
	assert.Equal(t, "tester", got.AgentID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "api", got.Platform)
	assert.Contains(t, string(got.Message), `"hello"`)
}

func TestBaseAgent_UpdateMetrics(t *testing.T) {
	b := newTestBase(Deps{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.UpdateMetrics(i%5 != 0, 1.0)
		}(i)
	}
	wg.Wait()

	m := b.Metrics()
	assert.Equal(t, 10, m.TotalRequests)
	assert.Equal(t, 8, m.SuccessfulRequests)
	assert.Equal(t, 2, m.FailedRequests)
	assert.InDelta(t, 0.2, m.ErrorRate, 1e-9)
	assert.InDelta(t, 1.0, m.AverageResponseTime, 1e-9)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	f := func(cfg *agent.Config, deps Deps) (Agent, error) { return nil, nil }
	r.Register("shimon", f)
	r.Register("alpha", f)

	_, ok := r.Get("shimon")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"alpha", "shimon"}, r.List())
}
