package llmprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// Fake is a scripted Provider used by dispatcher and end-to-end tests so
// worker-failure-tolerance and collector-timeout scenarios run without any
// network access. The first FailFirstN calls to GenerateStructured for each
// distinct prompt.User return a transient-looking error before succeeding,
// simulating a provider that fails transiently on the first few calls
// before recovering.
type Fake struct {
	mu           sync.Mutex
	kind         pipeline.ProviderKind
	FailFirstN   int
	calls        map[string]int
	PairsPerCall int
	// Hang, if set, blocks GenerateStructured/GenerateText until ctx is done,
	// simulating scenario 5's tasks that hang beyond the provider timeout.
	Hang bool
}

func NewFake(kind pipeline.ProviderKind) *Fake {
	return &Fake{kind: kind, calls: make(map[string]int), PairsPerCall: 2}
}

func (f *Fake) Kind() pipeline.ProviderKind { return f.kind }

func (f *Fake) GenerateStructured(ctx context.Context, prompt Prompt, modelHint string) (QAResult, error) {
	if f.Hang {
		<-ctx.Done()
		return QAResult{}, ctx.Err()
	}
	f.mu.Lock()
	f.calls[prompt.User]++
	attempt := f.calls[prompt.User]
	f.mu.Unlock()

	if attempt <= f.FailFirstN {
		return QAResult{}, fmt.Errorf("llmprovider: fake transient failure (attempt %d)", attempt)
	}
	return f.buildResult(), nil
}

func (f *Fake) GenerateText(ctx context.Context, prompt Prompt, modelHint string) (string, error) {
	if f.Hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return `{"qa_pairs":[{"question":"q","answer":"a","question_type":"fact"}]}`, nil
}

func (f *Fake) buildResult() QAResult {
	pairs := make([]QAPairRaw, 0, f.PairsPerCall)
	for i := 0; i < f.PairsPerCall; i++ {
		pairs = append(pairs, QAPairRaw{
			Question:     fmt.Sprintf("question %d", i),
			Answer:       fmt.Sprintf("answer %d", i),
			QuestionType: "fact",
		})
	}
	return QAResult{QAPairs: pairs}
}
