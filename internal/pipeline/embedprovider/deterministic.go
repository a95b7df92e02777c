package embedprovider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// Deterministic is a network-free embedder used by tests, grounded on
// internal/rag/embedder/embedder.go's deterministicEmbedder: it hashes
// character trigrams into a fixed-size vector so that the same text always
// yields the same embedding, and similar text yields similar vectors
// (enough for coverage-analyzer threshold tests to be meaningful).
type Deterministic struct {
	dim       int
	normalize bool
	kind      pipeline.ProviderKind
}

// NewDeterministic builds a Deterministic embedder of the given dimension.
// kind lets tests register it under either ProviderGemini or ProviderOpenAI
// so the rest of the pipeline is indifferent to which backend is live.
func NewDeterministic(dim int, normalize bool, kind pipeline.ProviderKind) *Deterministic {
	if dim <= 0 {
		dim = 64
	}
	return &Deterministic{dim: dim, normalize: normalize, kind: kind}
}

func (d *Deterministic) Kind() pipeline.ProviderKind { return d.kind }
func (d *Deterministic) Dimension() int              { return d.dim }
func (d *Deterministic) Ping(context.Context) error  { return nil }

func (d *Deterministic) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *Deterministic) embedOne(text string) []float32 {
	vec := make([]float32, d.dim)
	if text == "" {
		return vec
	}
	lower := strings.ToLower(text)
	runes := []rune(lower)
	n := len(runes)
	for i := 0; i < n; i++ {
		end := i + 3
		if end > n {
			end = n
		}
		gram := string(runes[i:end])
		h := fnv.New32a()
		_, _ = h.Write([]byte(gram))
		idx := int(h.Sum32()) % d.dim
		if idx < 0 {
			idx += d.dim
		}
		vec[idx]++
	}
	if d.normalize {
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for i := range vec {
				vec[i] = float32(float64(vec[i]) / norm)
			}
		}
	}
	return vec
}
