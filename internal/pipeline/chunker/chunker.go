// Package chunker splits a Document into an ordered sequence of
// pipeline.Chunk, preferring paragraph boundaries, then sentence-group
// boundaries, then a forced split for any single sentence that still
// exceeds the token budget. Grounded on the paragraph/sentence grouping
// idiom in internal/textsplitters/boundary.go (paragraphsOf, sentencesOf,
// groupByTarget) and the strategy-dispatch shape of
// internal/rag/chunker/chunker.go, generalized with ja/en sentence
// terminators and a typed origin_kind instead of an untyped Chunk.
package chunker

import (
	"regexp"
	"strings"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/tokenizer"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n+`)

// Chunker splits documents into chunks.
type Chunker struct {
	tok tokenizer.Tokenizer
}

// New builds a Chunker that counts tokens with tok. Passing the same tok
// instance to merger and allocator keeps boundary and count decisions in
// agreement, per the Data Model invariant.
func New(tok tokenizer.Tokenizer) *Chunker {
	if tok == nil {
		tok = tokenizer.Whitespace{}
	}
	return &Chunker{tok: tok}
}

// Options configures one Split call.
type Options struct {
	MaxTokens       int
	MinTokens       int // reserved for callers; the chunker itself does not floor on it, only the merger does
	PreferParagraphs bool
}

// Split turns a document into an ordered sequence of Chunk, keeping
// paragraphs whole when they fit and falling back to sentence grouping
// otherwise.
func (c *Chunker) Split(doc pipeline.Document, opt Options) []pipeline.Chunk {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}
	maxTokens := opt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}

	var units []unit
	if opt.PreferParagraphs {
		for _, p := range paragraphsOf(text) {
			units = append(units, c.splitCandidate(p, doc.Language, maxTokens, pipeline.OriginParagraph)...)
		}
	} else {
		units = c.splitCandidate(text, doc.Language, maxTokens, pipeline.OriginSentenceGroup)
	}

	chunks := make([]pipeline.Chunk, 0, len(units))
	for i, u := range units {
		if strings.TrimSpace(u.text) == "" {
			continue
		}
		chunks = append(chunks, pipeline.Chunk{
			ChunkID:    pipeline.DeriveChunkID(doc.DocID, i),
			DocID:      doc.DocID,
			ChunkIndex: i,
			Text:       u.text,
			TokenCount: c.tok.Count(u.text),
			OriginKind: u.origin,
			Sentences:  u.sentences,
		})
	}
	return chunks
}

type unit struct {
	text      string
	origin    pipeline.ChunkOriginKind
	sentences []string
}

// splitCandidate handles one candidate
// unit (a paragraph, or the whole document when prefer_paragraphs is off):
// if it fits, keep it whole with the given wholeOrigin; otherwise group its
// sentences greedily up to max_tokens, and force-split any sentence that
// alone still exceeds max_tokens.
func (c *Chunker) splitCandidate(text string, lang pipeline.Language, maxTokens int, wholeOrigin pipeline.ChunkOriginKind) []unit {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.tok.Count(text) <= maxTokens {
		return []unit{{text: text, origin: wholeOrigin, sentences: []string{text}}}
	}

	sentences := sentencesOf(text, lang)
	var out []unit
	var group []string
	groupTokens := 0
	flush := func() {
		if len(group) == 0 {
			return
		}
		out = append(out, unit{text: strings.Join(group, " "), origin: pipeline.OriginSentenceGroup, sentences: append([]string(nil), group...)})
		group = nil
		groupTokens = 0
	}
	for _, s := range sentences {
		st := c.tok.Count(s)
		if st > maxTokens {
			// Step 3: a single sentence that alone exceeds max_tokens is
			// emitted as its own forced_split unit without further splitting.
			flush()
			out = append(out, unit{text: s, origin: pipeline.OriginForcedSplit, sentences: []string{s}})
			continue
		}
		if groupTokens > 0 && groupTokens+st > maxTokens {
			flush()
		}
		group = append(group, s)
		groupTokens += st
	}
	flush()
	return out
}

func paragraphsOf(text string) []string {
	raw := blankLineRe.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentencesOf splits text on the language-appropriate terminator. A trailing
// run of text without a terminator still counts as one sentence.
func sentencesOf(text string, lang pipeline.Language) []string {
	terminators := ".!?"
	if lang == pipeline.LangJapanese {
		terminators = "。!?"
	}
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if strings.ContainsRune(terminators, r) {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
