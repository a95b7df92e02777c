package llmprovider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nakashima2toshio/qagen/internal/observability"
	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// AnthropicProvider wraps github.com/anthropics/anthropic-sdk-go as a third
// registered LLM backend, alongside Gemini and OpenAI.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

func NewAnthropicProvider(apiKey, defaultModel string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmprovider: anthropic api key is required")
	}
	if defaultModel == "" {
		defaultModel = "claude-3-5-haiku-latest"
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	)
	return &AnthropicProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *AnthropicProvider) Kind() pipeline.ProviderKind { return pipeline.ProviderAnthropic }

func (p *AnthropicProvider) model(hint string) string {
	if hint != "" {
		return hint
	}
	return p.defaultModel
}

func (p *AnthropicProvider) GenerateStructured(ctx context.Context, prompt Prompt, modelHint string) (QAResult, error) {
	text, err := p.message(ctx, prompt, modelHint)
	if err != nil {
		return QAResult{}, err
	}
	res, err := decodeStrict([]byte(text))
	if err != nil {
		return QAResult{}, fmt.Errorf("llmprovider: anthropic structured: %w", err)
	}
	return res, nil
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, prompt Prompt, modelHint string) (string, error) {
	return p.message(ctx, prompt, modelHint)
}

func (p *AnthropicProvider) message(ctx context.Context, prompt Prompt, modelHint string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(modelHint)),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: prompt.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmprovider: anthropic message: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("llmprovider: anthropic returned no content blocks")
	}
	return resp.Content[0].Text, nil
}
