// Package vector holds a flat, exact nearest-neighbor index over embedded
// text snippets.
//
// The dimensionality is fixed when the index is created by probing the
// embedder once. Rows are stored contiguously in insertion order and never
// modified; every search is a full L2 scan.
package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "contextpilot/backend/pkg/errors"
	"contextpilot/backend/pkg/logger"
	"contextpilot/backend/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultTopK is the number of snippets returned when callers do not choose
const DefaultTopK = 3

const sampleText = "test"

// Result is a search hit with its squared L2 distance to the query
type Result struct {
	Text     string  `json:"text"`
	Distance float32 `json:"distance"`
}

// Option configures an Index
type Option func(*Index)

// WithProviderName sets the provider name used in error messages
func WithProviderName(name string) Option {
	return func(idx *Index) {
		idx.provider = name
	}
}

// Index is a flat L2 index. texts[i] is the source of row i of data.
type Index struct {
	mu       sync.RWMutex
	embedder Embedder
	provider string
	dim      int
	data     []float32
	texts    []string
	logger   *zap.Logger
}

// NewIndex embeds a sample text to learn the vector dimension and returns an
// empty index of that dimension
func NewIndex(ctx context.Context, embedder Embedder, opts ...Option) (*Index, error) {
	idx := &Index{
		embedder: embedder,
		provider: "embedder",
		logger:   logger.Named("vector"),
	}
	for _, opt := range opts {
		opt(idx)
	}

	sample, err := idx.embed(ctx, sampleText)
	if err != nil {
		return nil, err
	}
	if len(sample) == 0 {
		return nil, apperrors.NewEmbeddingProvider(idx.provider, "sample embedding is empty", nil)
	}
	idx.dim = len(sample)

	idx.logger.Info("Vector index created",
		zap.String("provider", idx.provider),
		zap.Int("dimension", idx.dim),
	)
	return idx, nil
}

// Dimension returns the fixed vector length
func (idx *Index) Dimension() int {
	return idx.dim
}

// Len returns the number of stored snippets
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.texts)
}

// Texts returns the stored snippets in insertion order
func (idx *Index) Texts() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.texts))
	copy(out, idx.texts)
	return out
}

// AddText embeds text and appends it. On any error nothing is stored.
func (idx *Index) AddText(ctx context.Context, text string) error {
	vec, err := idx.embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vec) != idx.dim {
		return apperrors.NewDimensionMismatch(idx.dim, len(vec))
	}

	idx.mu.Lock()
	idx.data = append(idx.data, vec...)
	idx.texts = append(idx.texts, text)
	count := len(idx.texts)
	idx.mu.Unlock()

	metrics.VectorEntries.Set(float64(count))
	idx.logger.Debug("Text indexed", zap.Int("entries", count))
	return nil
}

// Search returns up to k stored texts, nearest first
func (idx *Index) Search(ctx context.Context, query string, k int) ([]string, error) {
	results, err := idx.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts, nil
}

// SearchWithScores returns the min(k, Len()) nearest snippets by L2 distance,
// ascending. The relative order of equidistant snippets is unspecified. An
// empty index or k <= 0 returns no results without calling the embedder.
func (idx *Index) SearchWithScores(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || idx.Len() == 0 {
		return []Result{}, nil
	}

	vec, err := idx.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) != idx.dim {
		return nil, apperrors.NewDimensionMismatch(idx.dim, len(vec))
	}

	idx.mu.RLock()
	n := len(idx.texts)
	results := make([]Result, n)
	workspace := make([]float32, idx.dim)
	for i := 0; i < n; i++ {
		row := idx.data[i*idx.dim : (i+1)*idx.dim]
		results[i] = Result{
			Text:     idx.texts[i],
			Distance: squaredL2(vec, row, workspace),
		}
	}
	idx.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k > n {
		k = n
	}
	return results[:k], nil
}

// embed calls the embedder and classifies failures as provider errors
func (idx *Index) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := idx.embedder.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	if apperrors.IsErrorType(err, apperrors.ErrorTypeEmbedding) || apperrors.IsErrorType(err, apperrors.ErrorTypeContext) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, apperrors.NewContextCancelled("embed", err)
	}
	return nil, apperrors.NewEmbeddingProvider(idx.provider, "embed failed", fmt.Errorf("embedding %d chars: %w", len(text), err))
}
