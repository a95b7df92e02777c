package llmprovider

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/nakashima2toshio/qagen/internal/observability"
	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// OpenAIProvider wraps github.com/openai/openai-go/v2, grounded on
// internal/llm/openai/client.go's client construction and its use of an
// otelhttp-instrumented HTTP client.
type OpenAIProvider struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIProvider(apiKey, defaultModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmprovider: openai api key is required")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	)
	return &OpenAIProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *OpenAIProvider) Kind() pipeline.ProviderKind { return pipeline.ProviderOpenAI }

func (p *OpenAIProvider) model(hint string) string {
	if hint != "" {
		return hint
	}
	return p.defaultModel
}

func (p *OpenAIProvider) GenerateStructured(ctx context.Context, prompt Prompt, modelHint string) (QAResult, error) {
	text, err := p.complete(ctx, prompt, modelHint, true)
	if err != nil {
		return QAResult{}, err
	}
	res, err := decodeStrict([]byte(text))
	if err != nil {
		return QAResult{}, fmt.Errorf("llmprovider: openai structured: %w", err)
	}
	return res, nil
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt Prompt, modelHint string) (string, error) {
	return p.complete(ctx, prompt, modelHint, false)
}

func (p *OpenAIProvider) complete(ctx context.Context, prompt Prompt, modelHint string, forceJSON bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model(modelHint)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	if forceJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llmprovider: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmprovider: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
