package embedprovider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// DefaultGeminiDimension matches original_source/helper_embedding.py's
// DEFAULT_GEMINI_EMBEDDING_DIMS.
const DefaultGeminiDimension = 3072

// GeminiEmbedder wraps google.golang.org/genai's embedding endpoint.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedprovider: gemini api key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("embedprovider: create genai client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dim: DefaultGeminiDimension}, nil
}

func (g *GeminiEmbedder) Kind() pipeline.ProviderKind { return pipeline.ProviderGemini }
func (g *GeminiEmbedder) Dimension() int              { return g.dim }

func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int
	for i, t := range texts {
		if t == "" {
			out[i] = zeroVector(g.dim)
			continue
		}
		pending = append(pending, t)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return out, nil
	}
	contents := make([]*genai.Content, len(pending))
	for i, t := range pending {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embedprovider: gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(pending) {
		return nil, fmt.Errorf("embedprovider: gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(pending))
	}
	for i, e := range resp.Embeddings {
		out[pendingIdx[i]] = e.Values
	}
	return out, nil
}

func (g *GeminiEmbedder) Ping(ctx context.Context) error {
	_, err := g.EmbedBatch(ctx, []string{"ping"})
	return err
}
