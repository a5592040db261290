package shimon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/agents"
	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/interaction"
	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/internal/domain/message"
	"agentsplatform/pkg/errors"
)

type recordingInteractions struct {
	stored []*interaction.Interaction
}

func (r *recordingInteractions) StoreInteraction(_ context.Context, i *interaction.Interaction) error {
	r.stored = append(r.stored, i)
	return nil
}

type staticPrompts struct{}

func (staticPrompts) SystemPrompt(context.Context, string) (string, error) {
	return "אתה שמעון, עורך דין מומחה להוצאה לפועל", nil
}

func seededDocs() *memDocs {
	now := time.Now().UTC()
	return &memDocs{docs: []*knowledge.Document{
		{SourceID: "lk-1", AgentID: AgentID, Type: knowledge.TypeLegalKnowledge, Category: "execution", Content: json.RawMessage(`{"law":"חוק ההוצאה לפועל"}`)},
		{SourceID: "r-1", AgentID: AgentID, Type: knowledge.TypeRuling, Category: "execution", Categories: []string{"הוצאה לפועל"}, Title: "רע\"א 1/24", URL: "https://supreme.court.gov.il/r/1", RelevanceScore: 0.9, Timestamp: now},
		{SourceID: "r-2", AgentID: AgentID, Type: knowledge.TypeRuling, Category: "bankruptcy", Categories: []string{"פשיטת רגל"}, Title: "פש\"ר 2/24", URL: "https://supreme.court.gov.il/r/2", RelevanceScore: 0.8, Timestamp: now},
		{SourceID: "t-1", AgentID: AgentID, Type: knowledge.TypeTemplate, Category: "execution", Title: "בקשה לעיקול", Timestamp: now},
	}}
}

func newTestAgent(t *testing.T, chat ai.ChatClient, docs *memDocs, store agents.InteractionStore) *Agent {
	t.Helper()
	cfg := agent.NewConfig(AgentID, "שמעון", "מומחה להוצאה לפועל")
	a, err := New(cfg, agents.Deps{Chat: chat, Prompts: staticPrompts{}, Interactions: store}, KnowledgeDeps{Documents: docs})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func TestAgent_Initialize(t *testing.T) {
	a := newTestAgent(t, &scriptedChat{}, seededDocs(), nil)

	require.Len(t, a.CaseLaw("execution"), 1)
	require.Len(t, a.CaseLaw("bankruptcy"), 1)
	require.Len(t, a.Templates("execution"), 1)
	assert.Contains(t, a.SystemPrompt(), "שמעון")

	t.Run("legal knowledge failure is fatal", func(t *testing.T) {
		cfg := agent.NewConfig(AgentID, "שמעון", "")
		a, err := New(cfg, agents.Deps{}, KnowledgeDeps{Documents: &memDocs{findErr: errors.New("down")}})
		require.NoError(t, err)

		err = a.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrAgentInitialization))
		assert.Equal(t, "AgentInitializationError", errors.Kind(err))
	})
}

func TestAgent_ProcessMessage(t *testing.T) {
	answer := "לפי סעיף 7 לחוק ההוצאה לפועל, מומלץ להגיש בקשה. יש לשים לב למועדים."
	chat := &scriptedChat{classification: "הוצאה לפועל", answer: answer}
	store := &recordingInteractions{}
	a := newTestAgent(t, chat, seededDocs(), store)

	msg := message.New(AgentID, "איך פותחים תיק הוצאה לפועל?", message.PlatformTelegram, "42")
	resp, err := a.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, answer, resp.Content)
	assert.Equal(t, AgentID, resp.AgentID)
	assert.Equal(t, "execution", resp.Metadata["category"])
	assert.Equal(t, []string{"רע\"א 1/24 - https://supreme.court.gov.il/r/1"}, resp.References())
	require.NotNil(t, resp.ConfidenceScore)
	// סעיף, מומלץ, יש לשים לב
	assert.InDelta(t, 0.8, *resp.ConfidenceScore, 1e-9)
	assert.Equal(t, *resp.ConfidenceScore, resp.Metadata["confidence_score"])

	require.Len(t, chat.requests, 2)
	classify, answerReq := chat.requests[0], chat.requests[1]
	assert.Equal(t, 0.3, classify.Temperature)
	assert.Equal(t, 100, classify.MaxTokens)
	assert.Equal(t, 0.3, answerReq.Temperature)
	assert.Equal(t, agents.DefaultMaxTokens, answerReq.MaxTokens)
	assert.Equal(t, ai.RoleSystem, answerReq.Messages[0].Role)
	user := answerReq.Messages[1].Content
	assert.True(t, strings.HasPrefix(user, "שאלה משפטית: איך פותחים תיק הוצאה לפועל?"))
	assert.Contains(t, user, "חוק ההוצאה לפועל")

	require.Len(t, store.stored, 1)
	assert.Equal(t, "telegram", store.stored[0].Platform)

	m := a.Metrics()
	assert.Equal(t, 1, m.TotalRequests)
	assert.Equal(t, 1, m.SuccessfulRequests)
}

func TestAgent_ProcessMessageGeneralCategory(t *testing.T) {
	chat := &scriptedChat{classification: "לא ברור", answer: "תשובה"}
	a := newTestAgent(t, chat, seededDocs(), nil)

	resp, err := a.ProcessMessage(context.Background(), message.New(AgentID, "שאלה כללית", message.PlatformAPI, "u"))
	require.NoError(t, err)
	assert.Equal(t, CategoryGeneral, resp.Metadata["category"])
	// general lookups are not filtered by category
	assert.Len(t, resp.References(), 2)
}

func TestAgent_ProcessMessageFailure(t *testing.T) {
	chat := &scriptedChat{classification: "עיקולים", answerErr: errors.ErrRateLimitExceeded}
	a := newTestAgent(t, chat, seededDocs(), nil)

	_, err := a.ProcessMessage(context.Background(), message.New(AgentID, "שאלה", message.PlatformAPI, "u"))
	require.Error(t, err)

	var agentErr *errors.AgentError
	require.True(t, errors.As(err, &agentErr))
	assert.Equal(t, AgentID, agentErr.AgentID)
	assert.True(t, errors.Is(err, errors.ErrCompletion))

	m := a.Metrics()
	assert.Equal(t, 1, m.FailedRequests)
	assert.InDelta(t, 1.0, m.ErrorRate, 1e-9)
}

func TestAgent_UpdateKnowledge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(supremeCourtPage))
	}))
	defer srv.Close()

	docs := seededDocs()
	cfg := agent.NewConfig(AgentID, "שמעון", "")
	a, err := New(cfg, agents.Deps{}, KnowledgeDeps{
		Documents: docs,
		Sources:   testSources(srv.URL),
	})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	before := a.LastKnowledgeUpdate()

	require.NoError(t, a.UpdateKnowledge(context.Background()))
	// the scraped ruling tagged הוצאה לפועל joins the execution case law
	assert.Len(t, a.CaseLaw("execution"), 2)
	assert.False(t, a.LastKnowledgeUpdate().Before(before))
}
