package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "contextpilot/backend/pkg/errors"
	"contextpilot/backend/pkg/logger"
	"contextpilot/backend/pkg/metrics"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Completer is a text-completion provider: one prompt in, one answer out
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelSelector is implemented by completers whose model can be switched at runtime
type ModelSelector interface {
	SetModel(model string)
	GetModel() string
}

// LLMAdapter handles communication with the LLM via LiteLLM
type LLMAdapter struct {
	client      *openai.Client
	model       string
	temperature float32
	mu          sync.RWMutex // Protects model field for concurrent access
	logger      *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(baseURL, apiKey, modelID string) *LLMAdapter {
	return &LLMAdapter{
		client:      newClient(baseURL, apiKey),
		model:       modelID,
		temperature: 0.2,
		logger:      logger.Named("llm"),
	}
}

func newClient(baseURL, apiKey string) *openai.Client {
	// For LiteLLM, we can use a dummy API key if not provided
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	return openai.NewClientWithConfig(config)
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Complete sends the prompt as a single user message and returns the reply.
// It does not retry; failures come back as ErrCompletionProvider.
func (a *LLMAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	currentModel := a.GetModel()

	req := openai.ChatCompletionRequest{
		Model: currentModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: a.temperature,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status, retryable := classifyError(ctx, err)
		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.String("model", currentModel),
			zap.Int("status", status),
			zap.Bool("retryable", retryable),
		)
		return "", apperrors.NewCompletionProvider(currentModel, status, retryable, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewCompletionProvider(currentModel, 0, false, apperrors.ErrCompletionEmpty)
	}

	content := resp.Choices[0].Message.Content

	a.logger.Debug("LLM response generated",
		zap.String("model", currentModel),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("latency", time.Since(start)),
	)

	return content, nil
}

// classifyError extracts the HTTP status and decides whether a retry could help
func classifyError(ctx context.Context, err error) (int, bool) {
	if ctx.Err() != nil {
		return 0, false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, retryableStatus(reqErr.HTTPStatusCode)
	}

	// Transport failures (connection refused, resets) and non-JSON error
	// bodies from the proxy are usually transient
	return 0, true
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}
