// Package embedprovider abstracts fixed-dimensionality embedding over text.
// Grounded on internal/rag/embedder/embedder.go's Embedder interface
// (EmbedBatch, Name, Dimension, Ping) and its deterministic test double,
// generalized here to two concrete dimensionalities: a Gemini-style backend
// (3072-dim) and an OpenAI-style backend (1536-dim), matching
// original_source/helper_embedding.py's DEFAULT_GEMINI_EMBEDDING_DIMS /
// DEFAULT_OPENAI_EMBEDDING_DIMS constants.
package embedprovider

import (
	"context"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// Provider embeds batches of text into fixed-size vectors. Empty strings
// contribute a zero vector; callers should pre-filter at the chunk level
// and only rely on this for defense in depth.
type Provider interface {
	Kind() pipeline.ProviderKind
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Ping(ctx context.Context) error
}

// Registry resolves a pipeline.ProviderKind to a constructed Provider,
// mirroring llmprovider.Registry.
type Registry struct {
	providers map[pipeline.ProviderKind]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[pipeline.ProviderKind]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Kind()] = p
}

func (r *Registry) Get(kind pipeline.ProviderKind) (Provider, bool) {
	p, ok := r.providers[kind]
	return p, ok
}

// zeroVector returns a zero vector of the given dimension, used for empty
// input text instead of calling the backend.
func zeroVector(dim int) []float32 {
	return make([]float32, dim)
}
