// Package llmprovider abstracts Q/A synthesis over an LLM. Concrete
// backends (Gemini, OpenAI, Anthropic) are selected by the tagged
// ProviderKind enum in package pipeline, never by runtime type assertions.
// Grounded on the per-vendor client split (internal/llm/google/client.go,
// internal/llm/openai/client.go, internal/llm/anthropic/client.go), each
// wrapping its vendor SDK behind one shared capability interface instead of
// a broader chat-oriented Provider.Chat/ChatStream contract.
package llmprovider

import (
	"context"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// QAPairRaw is the wire shape of one element of the {qa_pairs:[...]}
// schema returned by a provider, before it is stamped with chunk identity
// and becomes a pipeline.QAPair.
type QAPairRaw struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	QuestionType string `json:"question_type"`
}

// QAResult is the decoded {qa_pairs: [...]} schema object.
type QAResult struct {
	QAPairs []QAPairRaw `json:"qa_pairs"`
}

// Provider is the capability set every backend implements: a schema-
// validated structured call and a free-form text call, both optionally
// steered by a model hint. No network calls happen at construction time;
// only Generate* suspends.
type Provider interface {
	Kind() pipeline.ProviderKind
	GenerateStructured(ctx context.Context, prompt Prompt, modelHint string) (QAResult, error)
	GenerateText(ctx context.Context, prompt Prompt, modelHint string) (string, error)
}

// Prompt is the already-built system/user instruction pair for one call,
// produced by BuildPrompt.
type Prompt struct {
	System string
	User   string
}
