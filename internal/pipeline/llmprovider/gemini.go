package llmprovider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// GeminiProvider wraps google.golang.org/genai, grounded on
// internal/llm/google/client.go's construction of genai.NewClient and its
// use of client.Models.GenerateContent.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiProvider builds a provider from an API key, using the same
// genai.ClientConfig{APIKey: ...} construction as internal/llm/google.
func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmprovider: gemini api key is required")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llmprovider: create genai client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GeminiProvider) Kind() pipeline.ProviderKind { return pipeline.ProviderGemini }

func (p *GeminiProvider) model(hint string) string {
	if hint != "" {
		return hint
	}
	return p.defaultModel
}

func (p *GeminiProvider) GenerateStructured(ctx context.Context, prompt Prompt, modelHint string) (QAResult, error) {
	text, err := p.call(ctx, prompt, modelHint, true)
	if err != nil {
		return QAResult{}, err
	}
	res, err := decodeStrict([]byte(text))
	if err != nil {
		return QAResult{}, fmt.Errorf("llmprovider: gemini structured: %w", err)
	}
	return res, nil
}

func (p *GeminiProvider) GenerateText(ctx context.Context, prompt Prompt, modelHint string) (string, error) {
	return p.call(ctx, prompt, modelHint, false)
}

// call issues one GenerateContent request. When forceJSON is set, the
// response MIME type is constrained to application/json so the structured
// path gets a clean object back.
func (p *GeminiProvider) call(ctx context.Context, prompt Prompt, modelHint string, forceJSON bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
	}
	if forceJSON {
		cfg.ResponseMIMEType = "application/json"
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model(modelHint), genai.Text(prompt.User), cfg)
	if err != nil {
		return "", fmt.Errorf("llmprovider: gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llmprovider: gemini returned empty response")
	}
	return text, nil
}
