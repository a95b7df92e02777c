package llmprovider

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// MaxPromptChars is the upper character bound chunk text is truncated to
// before prompting (see DESIGN.md for why 2,000 was chosen over 1,000).
const MaxPromptChars = 2000

const systemInstruction = "You generate learning Q/A pairs. Be concise and faithful to the source text. " +
	"Every answer must be directly supported by the text it was generated from."

// ChunkRequest pairs one chunk with the number of Q/A pairs requested for
// it, as computed by the allocator, and the model hint (if any) the caller
// wants forwarded to the provider for this call.
type ChunkRequest struct {
	Chunk       pipeline.Chunk
	RequestedQA int
	ModelHint   string
}

// BuildPrompt constructs the system/user instruction pair for either a
// single chunk or a batch: it names the four question types and requests
// exactly N pairs for a given text (single chunk) or for a numbered list of
// texts (batched multi-chunk).
func BuildPrompt(reqs []ChunkRequest) Prompt {
	var user strings.Builder
	user.WriteString("Question types: fact, reason, comparison, application.\n\n")

	if len(reqs) == 1 {
		r := reqs[0]
		fmt.Fprintf(&user, "Generate exactly %d Q/A pairs for the following text:\n\n%s\n", r.RequestedQA, truncate(r.Chunk.Text))
	} else {
		user.WriteString("For each numbered text below, generate exactly the requested number of Q/A pairs, " +
			"and return all pairs in a single qa_pairs array, in order.\n\n")
		for i, r := range reqs {
			fmt.Fprintf(&user, "%d. (%d pairs requested)\n%s\n\n", i+1, r.RequestedQA, truncate(r.Chunk.Text))
		}
	}
	user.WriteString("\nRespond as JSON matching: {\"qa_pairs\": [{\"question\": ..., \"answer\": ..., \"question_type\": ...}]}")

	return Prompt{System: systemInstruction, User: user.String()}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxPromptChars {
		return s
	}
	r := []rune(s)
	return string(r[:MaxPromptChars])
}
