// Package tokenizer provides the single token-counting rule shared by the
// chunker, merger, and allocator, so that boundary decisions (chunker),
// merge decisions (merger), and count decisions (allocator) all agree, per
// the Data Model invariant "chunk token counts are computed with the same
// tokenizer used by the allocator."
package tokenizer

import (
	"unicode"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in text deterministically and without network
// calls.
type Tokenizer interface {
	Count(text string) int
	Name() string
}

// Whitespace is a word/punctuation-aware counter: each punctuation
// character counts as its own token rather than being absorbed into the
// preceding word.
// Grounded on internal/util/tokenizer.go's CountTokens.
type Whitespace struct{}

func (Whitespace) Name() string { return "whitespace" }

func (Whitespace) Count(s string) int {
	inWord := false
	count := 0
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if inWord {
				count++
				inWord = false
			}
		case unicode.IsPunct(r):
			if inWord {
				count++
				inWord = false
			}
			count++
		default:
			inWord = true
		}
	}
	if inWord {
		count++
	}
	return count
}

// Tiktoken counts tokens using a BPE encoding, giving provider-stable
// counts that track what an OpenAI-style model actually consumes.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken builds a Tiktoken counter for the given encoding name (for
// example "cl100k_base"; empty selects it). If the encoding cannot be
// loaded it returns a nil counter and the error; there is no fallback to
// Whitespace. cmd/qagen treats that error as a configuration error.
func NewTiktoken(encodingName string) (*Tiktoken, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Name() string { return "tiktoken:" + t.enc.Name() }

func (t *Tiktoken) Count(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}
