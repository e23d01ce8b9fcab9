package agent

import (
	"context"
	"fmt"

	"contextpilot/backend/internal/adapter"
	"contextpilot/backend/internal/constants"
	"contextpilot/backend/internal/graph"
	"contextpilot/backend/internal/knowledge"
	"contextpilot/backend/internal/vector"
	"contextpilot/backend/pkg/config"
	"contextpilot/backend/pkg/logger"
	"go.uber.org/zap"
)

// NewFromConfig wires the graph, the knowledge index and the LLM adapter
// from configuration and seeds the index with the default knowledge plus
// any configured file or page
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	log := logger.Get()

	policy, err := graph.ParseDuplicatePolicy(cfg.GraphDuplicatePolicy)
	if err != nil {
		return nil, err
	}
	g := graph.NewContextGraph(
		graph.WithAutoCreateEndpoints(cfg.GraphAutoCreateEndpoints),
		graph.WithDuplicatePolicy(policy),
	)

	embedder, provider := newEmbedder(cfg)
	index, err := vector.NewIndex(ctx, embedder, vector.WithProviderName(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize knowledge index: %w", err)
	}

	loader := knowledge.NewLoader(index)
	if _, err := loader.LoadTexts(ctx, constants.DefaultKnowledge); err != nil {
		return nil, err
	}
	if cfg.KnowledgeFile != "" {
		if _, err := loader.LoadFile(ctx, cfg.KnowledgeFile); err != nil {
			return nil, err
		}
	}
	if cfg.KnowledgeURL != "" {
		// A dead page should not keep the assistant from starting
		if _, err := loader.LoadURL(ctx, cfg.KnowledgeURL); err != nil {
			log.Warn("Failed to load knowledge page", zap.String("url", cfg.KnowledgeURL), zap.Error(err))
		}
	}

	llm := adapter.NewLLMAdapter(cfg.LiteLLMURL, cfg.APIKey, cfg.ModelID)

	opts := DefaultOptions()
	opts.Radius = cfg.NeighborhoodRadius
	opts.TopK = cfg.SearchTopK
	opts.MaxAttempts = cfg.LLMMaxAttempts

	log.Info("Assistant initialized",
		zap.String("model", cfg.ModelID),
		zap.String("embedding_provider", provider),
		zap.Int("dimension", index.Dimension()),
		zap.Int("knowledge_entries", index.Len()),
	)
	return NewOrchestrator(g, index, llm, opts), nil
}

func newEmbedder(cfg *config.Config) (vector.Embedder, string) {
	if cfg.EmbeddingProvider == config.EmbeddingProviderHashing {
		return vector.NewHashingEmbedder(cfg.HashingDimension), config.EmbeddingProviderHashing
	}
	return adapter.NewEmbeddingAdapter(cfg.LiteLLMURL, cfg.APIKey, cfg.EmbeddingModel), cfg.EmbeddingModel
}
