package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/metrics"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/utils"
)

type mockAgents struct {
	mock.Mock
}

func (m *mockAgents) ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error) {
	args := m.Called(ctx, msg)
	resp, _ := args.Get(0).(*message.Response)
	return resp, args.Error(1)
}

func (m *mockAgents) GetAgentConfigs(ctx context.Context) ([]*agent.Config, error) {
	args := m.Called(ctx)
	configs, _ := args.Get(0).([]*agent.Config)
	return configs, args.Error(1)
}

func (m *mockAgents) SetAgentActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockAgents) GetSystemStatus(ctx context.Context) (*agent.SystemStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*agent.SystemStatus)
	return status, args.Error(1)
}

type fakeMonitor struct {
	mu       sync.Mutex
	recorded []bool
	health   metrics.SystemHealth
}

func (f *fakeMonitor) RecordRequest(ctx context.Context, agentID string, success bool, responseTime float64, errType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, success)
}

func (f *fakeMonitor) GetSystemHealth() metrics.SystemHealth {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) GetStatus() map[string]workers.TaskStatus {
	return m.Called().Get(0).(map[string]workers.TaskStatus)
}

func (m *mockScheduler) RunTaskNow(name string) error {
	return m.Called(name).Error(0)
}

func newTestServer(t *testing.T, agents *mockAgents, monitor *fakeMonitor, sched TaskScheduler) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{
		Prefix:         "/api/v1",
		StreamInterval: 20 * time.Millisecond,
		Agents:         agents,
		Monitor:        monitor,
		Scheduler:      sched,
	})
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decodeError(t *testing.T, resp *http.Response) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleMessage(t *testing.T) {
	agents := &mockAgents{}
	monitor := &fakeMonitor{}
	agents.On("ProcessMessage", mock.Anything, mock.MatchedBy(func(m *message.Message) bool {
		return m.AgentID == "shimon" && m.Content == "מה זה עיקול?" && m.Platform == message.PlatformAPI
	})).Return(&message.Response{Content: "תשובה", AgentID: "shimon", ProcessingTime: 0.5}, nil)

	srv := newTestServer(t, agents, monitor, nil)

	body := `{"agent_id":"shimon","content":"  מה זה עיקול? ","user_id":"u1"}`
	resp, err := http.Post(srv.URL+"/api/v1/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out message.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "תשובה", out.Content)
	assert.Equal(t, []bool{true}, monitor.recorded)
	agents.AssertExpectations(t)
}

func TestHandleMessage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		errorKey string
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest, errorKey: "ValidationError"},
		{name: "bad agent id", body: `{"agent_id":"shi mon","content":"hi"}`, status: http.StatusBadRequest, errorKey: "ValidationError"},
		{name: "empty content", body: `{"agent_id":"shimon","content":"   "}`, status: http.StatusBadRequest, errorKey: "ValidationError"},
		{name: "unknown agent", body: `{"agent_id":"nobody","content":"hi"}`, err: errors.ErrAgentNotFound, status: http.StatusNotFound, errorKey: "AgentNotFoundError"},
		{name: "inactive agent", body: `{"agent_id":"shimon","content":"hi"}`, err: errors.ErrAgentInactive, status: http.StatusNotFound, errorKey: "AgentInactiveError"},
		{name: "rate limited", body: `{"agent_id":"shimon","content":"hi"}`, err: errors.ErrRateLimitExceeded, status: http.StatusTooManyRequests, errorKey: "RateLimitError"},
		{name: "completion failure", body: `{"agent_id":"shimon","content":"hi"}`, err: errors.ErrCompletion, status: http.StatusInternalServerError, errorKey: "CompletionError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agents := &mockAgents{}
			if tt.err != nil {
				agents.On("ProcessMessage", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			srv := newTestServer(t, agents, &fakeMonitor{}, nil)

			resp, err := http.Post(srv.URL+"/api/v1/messages", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.errorKey, body.Error)
			assert.NotEmpty(t, body.Message)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestHandleListAgents(t *testing.T) {
	agents := &mockAgents{}
	agents.On("GetAgentConfigs", mock.Anything).Return([]*agent.Config{
		agent.NewConfig("shimon", "שמעון", "עוזר משפטי", "legal_advice"),
	}, nil)
	srv := newTestServer(t, agents, &fakeMonitor{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/agents")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var configs []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&configs))
	require.Len(t, configs, 1)
	assert.Equal(t, "shimon", configs[0]["id"])
}

func TestHandleUpdateAgent(t *testing.T) {
	agents := &mockAgents{}
	agents.On("SetAgentActive", mock.Anything, "shimon", false).Return(nil)
	agents.On("SetAgentActive", mock.Anything, "ghost", true).Return(errors.ErrAgentNotFound)
	srv := newTestServer(t, agents, &fakeMonitor{}, nil)

	patch := func(id, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/agents/"+id, strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := patch("shimon", `{"active":false}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = patch("ghost", `{"active":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = patch("shimon", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	agents.AssertExpectations(t)
}

func TestHandleStatus(t *testing.T) {
	agents := &mockAgents{}
	agents.On("GetSystemStatus", mock.Anything).Return(&agent.SystemStatus{
		Version:      "1.0.0",
		Environment:  "test",
		ActiveAgents: 1,
		AgentsStatus: map[string]agent.Metrics{"shimon": agent.NewMetrics("shimon")},
	}, nil)
	srv := newTestServer(t, agents, &fakeMonitor{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status agent.SystemStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "1.0.0", status.Version)
	assert.Contains(t, status.AgentsStatus, "shimon")
}

func TestScheduler(t *testing.T) {
	sched := &mockScheduler{}
	sched.On("GetStatus").Return(map[string]workers.TaskStatus{
		workers.TaskHealthCheck: {Interval: 300},
	})
	sched.On("RunTaskNow", workers.TaskHealthCheck).Return(nil)
	sched.On("RunTaskNow", "missing").Return(errors.Wrap(errors.ErrNotFound, "task missing not found"))
	srv := newTestServer(t, &mockAgents{}, &fakeMonitor{}, sched)

	resp, err := http.Get(srv.URL + "/api/v1/scheduler")
	require.NoError(t, err)
	var status map[string]workers.TaskStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, int64(300), status[workers.TaskHealthCheck].Interval)

	resp, err = http.Post(srv.URL+"/api/v1/scheduler/health_check/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/v1/scheduler/missing/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	sched.AssertExpectations(t)
}

func TestStatusStream(t *testing.T) {
	monitor := &fakeMonitor{health: metrics.SystemHealth{Status: metrics.StatusHealthy, TotalRequests: 7}}
	srv := newTestServer(t, &mockAgents{}, monitor, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/status/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 2; i++ {
		var health metrics.SystemHealth
		require.NoError(t, conn.ReadJSON(&health))
		assert.Equal(t, metrics.StatusHealthy, health.Status)
		assert.Equal(t, 7, health.TotalRequests)
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusCode(errors.Wrap(errors.ErrAgentNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, StatusCode(errors.NewValidationError("f", "bad", nil)))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(errors.ErrRateLimitExceeded))
	assert.Equal(t, http.StatusConflict, StatusCode(errors.ErrAlreadyExists))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}
