package vector

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// Embedder converts text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashingEmbedder is an offline embedder: each lower-cased word token adds
// 1 to an FNV-1a bucket of a Dim-sized vector. Texts sharing words land close
// in L2 space, which is enough for development without an embedding endpoint.
type HashingEmbedder struct {
	Dim int
}

// NewHashingEmbedder returns a hashing embedder with the given dimension
func NewHashingEmbedder(dim int) *HashingEmbedder {
	return &HashingEmbedder{Dim: dim}
}

// Embed implements Embedder
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.Dim)
	if h.Dim == 0 {
		return vec, nil
	}
	for _, token := range Tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		vec[hasher.Sum32()%uint32(h.Dim)]++
	}
	return vec, nil
}

// Tokenize splits text into lower-cased runs of letters and digits
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
