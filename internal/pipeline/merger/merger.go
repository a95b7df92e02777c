// Package merger coalesces undersized adjacent chunks within the same
// document, bounded above by max_tokens. Grounded on the single-pending-item
// accumulate-then-flush idiom of internal/textsplitters/boundary.go's
// groupByTarget, generalized here to track merge provenance (merged_of) and
// to refuse merges across document boundaries.
package merger

import (
	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/tokenizer"
)

const paragraphSeparator = "\n\n"

// Merger merges undersized chunks using the Tokenizer shared with the
// chunker and allocator.
type Merger struct {
	tok tokenizer.Tokenizer
}

func New(tok tokenizer.Tokenizer) *Merger {
	if tok == nil {
		tok = tokenizer.Whitespace{}
	}
	return &Merger{tok: tok}
}

// Merge folds undersized adjacent chunks together up to maxTokens. The
// output preserves document ordering.
func (m *Merger) Merge(chunks []pipeline.Chunk, minTokens, maxTokens int) []pipeline.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]pipeline.Chunk, 0, len(chunks))
	var pending *pipeline.Chunk

	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
		}
	}

	for i := range chunks {
		cur := chunks[i]
		if cur.TokenCount >= minTokens {
			flush()
			out = append(out, cur)
			continue
		}
		if pending == nil {
			p := cur
			pending = &p
			continue
		}
		if pending.DocID == cur.DocID && pending.TokenCount+cur.TokenCount <= maxTokens {
			merged := m.combine(*pending, cur)
			pending = &merged
			continue
		}
		flush()
		p := cur
		pending = &p
	}
	flush()
	return out
}

// combine joins pending and next into one merged chunk, accumulating
// merged_of across repeated merges so that merging an already-merged list
// is idempotent: a chunk already at or above min_tokens is simply emitted,
// never re-merged.
func (m *Merger) combine(pending, next pipeline.Chunk) pipeline.Chunk {
	text := pending.Text + paragraphSeparator + next.Text
	mergedOf := pending.MergedOf
	if len(mergedOf) == 0 {
		mergedOf = []string{pending.ChunkID}
	}
	if len(next.MergedOf) > 0 {
		mergedOf = append(mergedOf, next.MergedOf...)
	} else {
		mergedOf = append(mergedOf, next.ChunkID)
	}
	return pipeline.Chunk{
		ChunkID:    pending.ChunkID,
		DocID:      pending.DocID,
		DocIndex:   pending.DocIndex,
		ChunkIndex: pending.ChunkIndex,
		Text:       text,
		TokenCount: m.tok.Count(text),
		OriginKind: pipeline.OriginMerged,
		Sentences:  append(append([]string(nil), pending.Sentences...), next.Sentences...),
		MergedOf:   mergedOf,
	}
}
