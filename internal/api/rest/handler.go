// Package rest serves the versioned JSON API of the platform
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"agentsplatform/internal/domain/agent"
	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/metrics"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
	"agentsplatform/pkg/utils"
)

const (
	maxBodyBytes = 1 << 20

	defaultStreamInterval = 5 * time.Second
	streamWriteWait       = 10 * time.Second
)

// AgentService is the part of the agent manager served over HTTP
type AgentService interface {
	ProcessMessage(ctx context.Context, msg *message.Message) (*message.Response, error)
	GetAgentConfigs(ctx context.Context) ([]*agent.Config, error)
	SetAgentActive(ctx context.Context, id string, active bool) error
	GetSystemStatus(ctx context.Context) (*agent.SystemStatus, error)
}

// Monitor exposes request statistics
type Monitor interface {
	RecordRequest(ctx context.Context, agentID string, success bool, responseTime float64, errType string)
	GetSystemHealth() metrics.SystemHealth
}

// TaskScheduler is the part of the scheduler served over HTTP
type TaskScheduler interface {
	GetStatus() map[string]workers.TaskStatus
	RunTaskNow(name string) error
}

// Config configures the API handler
type Config struct {
	Prefix         string
	StreamInterval time.Duration
	Agents         AgentService
	Monitor        Monitor
	Scheduler      TaskScheduler // optional
}

// Handler serves the /api/v1 routes
type Handler struct {
	prefix         string
	streamInterval time.Duration
	agents         AgentService
	monitor        Monitor
	scheduler      TaskScheduler
	upgrader       websocket.Upgrader
	log            *logger.Logger
}

// NewHandler creates the API handler
func NewHandler(cfg Config) *Handler {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = defaultStreamInterval
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/api/v1"
	}
	return &Handler{
		prefix:         cfg.Prefix,
		streamInterval: cfg.StreamInterval,
		agents:         cfg.Agents,
		monitor:        cfg.Monitor,
		scheduler:      cfg.Scheduler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.Get().With("component", "api"),
	}
}

// Register mounts the routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	p := h.prefix
	mux.HandleFunc("POST "+p+"/messages", h.handleMessage)
	mux.HandleFunc("GET "+p+"/agents", h.handleListAgents)
	mux.HandleFunc("PATCH "+p+"/agents/{id}", h.handleUpdateAgent)
	mux.HandleFunc("GET "+p+"/status", h.handleStatus)
	mux.HandleFunc("GET "+p+"/status/stream", h.handleStatusStream)
	mux.HandleFunc("GET "+p+"/scheduler", h.handleSchedulerStatus)
	mux.HandleFunc("POST "+p+"/scheduler/{name}/run", h.handleRunTask)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, "invalid JSON body: "+err.Error())
	}
	return nil
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg message.Message
	if err := h.decode(w, r, &msg); err != nil {
		WriteError(w, h.log, err)
		return
	}
	if msg.Platform == "" {
		msg.Platform = message.PlatformAPI
	}
	if msg.Context == nil {
		msg.Context = map[string]interface{}{}
	}
	msg.Content = utils.SanitizeInput(msg.Content)
	if err := msg.Validate(); err != nil {
		WriteError(w, h.log, err)
		return
	}

	start := time.Now()
	resp, err := h.agents.ProcessMessage(r.Context(), &msg)
	if h.monitor != nil {
		h.monitor.RecordRequest(r.Context(), msg.AgentID, err == nil, time.Since(start).Seconds(), errors.Kind(err))
	}
	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	configs, err := h.agents.GetAgentConfigs(r.Context())
	if err != nil {
		WriteError(w, h.log, err)
		return
	}
	if configs == nil {
		configs = []*agent.Config{}
	}
	WriteJSON(w, http.StatusOK, configs)
}

type updateAgentRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := utils.ValidateAgentID(id); err != nil {
		WriteError(w, h.log, err)
		return
	}

	var req updateAgentRequest
	if err := h.decode(w, r, &req); err != nil {
		WriteError(w, h.log, err)
		return
	}
	if req.Active == nil {
		WriteError(w, h.log, errors.NewValidationError("active", "is required", nil))
		return
	}

	if err := h.agents.SetAgentActive(r.Context(), id, *req.Active); err != nil {
		WriteError(w, h.log, err)
		return
	}

	h.log.Infow("Agent state changed", "agent_id", id, "active", *req.Active)
	WriteJSON(w, http.StatusOK, map[string]interface{}{"id": id, "active": *req.Active})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.agents.GetSystemStatus(r.Context())
	if err != nil {
		WriteError(w, h.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		WriteJSON(w, http.StatusOK, map[string]workers.TaskStatus{})
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.GetStatus())
}

func (h *Handler) handleRunTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if h.scheduler == nil {
		WriteError(w, h.log, errors.Wrapf(errors.ErrNotFound, "task %s not found", name))
		return
	}
	if err := h.scheduler.RunTaskNow(name); err != nil {
		WriteError(w, h.log, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"task": name, "status": "scheduled"})
}
