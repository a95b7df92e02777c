package embedprovider

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// DefaultOpenAIDimension matches original_source/helper_embedding.py's
// DEFAULT_OPENAI_EMBEDDING_DIMS.
const DefaultOpenAIDimension = 1536

// OpenAIEmbedder wraps github.com/openai/openai-go/v2's embeddings
// endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedprovider: openai api key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIEmbedder{client: client, model: model, dim: DefaultOpenAIDimension}, nil
}

func (o *OpenAIEmbedder) Kind() pipeline.ProviderKind { return pipeline.ProviderOpenAI }
func (o *OpenAIEmbedder) Dimension() int              { return o.dim }

func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int
	for i, t := range texts {
		if t == "" {
			out[i] = zeroVector(o.dim)
			continue
		}
		pending = append(pending, t)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return out, nil
	}
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: o.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: pending},
	})
	if err != nil {
		return nil, fmt.Errorf("embedprovider: openai embed: %w", err)
	}
	if len(resp.Data) != len(pending) {
		return nil, fmt.Errorf("embedprovider: openai returned %d embeddings for %d inputs", len(resp.Data), len(pending))
	}
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[pendingIdx[i]] = vec
	}
	return out, nil
}

func (o *OpenAIEmbedder) Ping(ctx context.Context) error {
	_, err := o.EmbedBatch(ctx, []string{"ping"})
	return err
}
