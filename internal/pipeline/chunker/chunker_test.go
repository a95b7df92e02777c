package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/tokenizer"
)

func newChunker() *Chunker { return New(tokenizer.Whitespace{}) }

func TestSplit_EmptyDocumentYieldsNoChunks(t *testing.T) {
	c := newChunker()
	chunks := c.Split(pipeline.Document{DocID: "d1", Text: "   ", Language: pipeline.LangEnglish}, Options{MaxTokens: 50, PreferParagraphs: true})
	require.Empty(t, chunks)
}

func TestSplit_ParagraphsPreferred(t *testing.T) {
	c := newChunker()
	doc := pipeline.Document{
		DocID:    "d1",
		Language: pipeline.LangEnglish,
		Text:     "First paragraph is short.\n\nSecond paragraph is also short.",
	}
	chunks := c.Split(doc, Options{MaxTokens: 100, PreferParagraphs: true})
	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		require.Equal(t, pipeline.OriginParagraph, ch.OriginKind)
		require.LessOrEqual(t, ch.TokenCount, 100)
	}
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestSplit_ForcedSplitForOversizedSentence(t *testing.T) {
	c := newChunker()
	longSentence := strings.Repeat("word ", 200) + "."
	doc := pipeline.Document{DocID: "d2", Language: pipeline.LangEnglish, Text: longSentence}
	chunks := c.Split(doc, Options{MaxTokens: 10, PreferParagraphs: false})
	require.Len(t, chunks, 1)
	require.Equal(t, pipeline.OriginForcedSplit, chunks[0].OriginKind)
}

func TestSplit_SentenceGroupsStayUnderMax(t *testing.T) {
	c := newChunker()
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is sentence number with a few words. ")
	}
	doc := pipeline.Document{DocID: "d3", Language: pipeline.LangEnglish, Text: sb.String()}
	chunks := c.Split(doc, Options{MaxTokens: 30, PreferParagraphs: false})
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		if ch.OriginKind != pipeline.OriginForcedSplit {
			require.LessOrEqual(t, ch.TokenCount, 30)
		}
	}
}

func TestSplit_JapaneseTerminator(t *testing.T) {
	c := newChunker()
	doc := pipeline.Document{
		DocID:    "d4",
		Language: pipeline.LangJapanese,
		Text:     strings.Repeat("これはテストの文です。", 60),
	}
	chunks := c.Split(doc, Options{MaxTokens: 20, PreferParagraphs: false})
	require.NotEmpty(t, chunks)
}

func TestSplit_Deterministic(t *testing.T) {
	c := newChunker()
	doc := pipeline.Document{DocID: "d5", Language: pipeline.LangEnglish, Text: "Para one.\n\nPara two has more words in it to test.\n\nPara three."}
	a := c.Split(doc, Options{MaxTokens: 50, PreferParagraphs: true})
	b := c.Split(doc, Options{MaxTokens: 50, PreferParagraphs: true})
	require.Equal(t, a, b)
}
