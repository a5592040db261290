package embeddings

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"agentsplatform/internal/adapters/config"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// maxInputRunes keeps a single input below the model context window
const maxInputRunes = 8000

// OpenAIProvider implements Provider with the official OpenAI SDK
type OpenAIProvider struct {
	client     openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	log        *logger.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider from the OpenAI section of the config.
// With AZURE_OPENAI_ENDPOINT set, the embedding model name is used as the Azure deployment.
func NewOpenAIProvider(cfg config.OpenAIConfig, extra ...option.RequestOption) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "openai API key is required")
	}

	model := cfg.EmbeddingModel
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var opts []option.RequestOption
	if cfg.Azure() {
		opts = append(opts, azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion), azure.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, extra...)

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      openai.EmbeddingModel(model),
		dimensions: Dimensions(model),
		timeout:    timeout,
		log:        logger.Get().With("component", "openai_embeddings", "model", model),
	}, nil
}

// GenerateEmbedding creates a vector embedding for the given text
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "text cannot be empty")
	}
	vectors, err := p.GenerateBatchEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatchEmbeddings creates embeddings for multiple texts in one API call
func (p *OpenAIProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "texts cannot be empty")
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = truncate(t)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	response, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
		Model: p.model,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrExternal, "openai embeddings call failed: "+err.Error())
	}
	if len(response.Data) != len(texts) {
		return nil, errors.Wrapf(errors.ErrInternal,
			"expected %d embeddings, got %d", len(texts), len(response.Data))
	}

	result := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || int(item.Index) >= len(result) {
			continue
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		result[item.Index] = vec
	}

	p.log.Debugw("Generated embeddings",
		"count", len(texts),
		"tokens_used", response.Usage.TotalTokens,
	)
	return result, nil
}

// Dimensions returns the vector size of the configured model
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Dimensions maps a model name to its output size
func Dimensions(model string) int {
	switch model {
	case string(openai.EmbeddingModelTextEmbedding3Large):
		return 3072
	default:
		return 1536
	}
}

func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxInputRunes {
		return text
	}
	return string(r[:maxInputRunes])
}
