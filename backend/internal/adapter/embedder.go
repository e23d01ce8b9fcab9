package adapter

import (
	"context"

	apperrors "contextpilot/backend/pkg/errors"
	"contextpilot/backend/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const embeddingProviderName = "openai"

// EmbeddingAdapter produces embeddings through an OpenAI-compatible
// /v1/embeddings endpoint (LiteLLM in front of the real provider)
type EmbeddingAdapter struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewEmbeddingAdapter creates a new embedding adapter
func NewEmbeddingAdapter(baseURL, apiKey, model string) *EmbeddingAdapter {
	return &EmbeddingAdapter{
		client: newClient(baseURL, apiKey),
		model:  model,
		logger: logger.Named("embedding"),
	}
}

// Embed returns the embedding of text. Transport failures and malformed
// responses are reported as ErrEmbeddingProvider.
func (e *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewContextCancelled("embed", err)
		}
		e.logger.Warn("Embedding request failed",
			zap.String("model", e.model),
			zap.Error(err),
		)
		return nil, apperrors.NewEmbeddingProvider(embeddingProviderName, "request failed", err)
	}

	if len(resp.Data) != 1 {
		return nil, apperrors.NewEmbeddingProvider(embeddingProviderName, "expected exactly one embedding in response", nil)
	}
	vec := resp.Data[0].Embedding
	if len(vec) == 0 {
		return nil, apperrors.NewEmbeddingProvider(embeddingProviderName, "empty embedding in response", nil)
	}

	return vec, nil
}
