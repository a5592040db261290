package ai

import (
	"context"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"agentsplatform/internal/adapters/config"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// OpenAIChat implements ChatClient with the official SDK, against Azure OpenAI or api.openai.com
type OpenAIChat struct {
	client       openai.Client
	defaultModel string
	limiter      *rate.Limiter
	usage        *UsageTracker
	timeout      time.Duration
	log          *logger.Logger
}

// NewOpenAIChat builds a client from config. Extra options are appended last, tests use them
// to point the client at an httptest server.
func NewOpenAIChat(cfg config.OpenAIConfig, usage *UsageTracker, extra ...option.RequestOption) (*OpenAIChat, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "OPENAI_API_KEY is required")
	}

	opts := []option.RequestOption{option.WithMaxRetries(2)}
	if cfg.Azure() {
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	opts = append(opts, extra...)

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if usage == nil {
		usage = NewUsageTracker()
	}

	return &OpenAIChat{
		client:       openai.NewClient(opts...),
		defaultModel: cfg.Model,
		limiter:      rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		usage:        usage,
		timeout:      timeout,
		log:          logger.Get().With("component", "openai_chat", "azure", cfg.Azure()),
	}, nil
}

// Complete sends the request and returns the first choice
func (c *OpenAIChat) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no messages")
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for completion rate limit")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toSDKMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrExternal, "completion returned no choices")
	}

	out := &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	c.usage.Record(model, out.Usage)

	c.log.Debugw("Completion done",
		"model", model,
		"tokens", out.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Usage returns the tracker this client records into
func (c *OpenAIChat) Usage() *UsageTracker {
	return c.usage
}

func toSDKMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classifyError maps SDK errors onto platform sentinels
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return errors.Wrap(errors.ErrRateLimitExceeded, apiErr.Error())
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(errors.ErrUnauthorized, apiErr.Error())
		default:
			return errors.Wrap(errors.ErrExternal, apiErr.Error())
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	return errors.Wrap(err, "openai completion")
}
