package merger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/tokenizer"
)

func newMerger() *Merger { return New(tokenizer.Whitespace{}) }

func chunk(id, doc string, idx, tokens int) pipeline.Chunk {
	return pipeline.Chunk{ChunkID: id, DocID: doc, ChunkIndex: idx, Text: makeWords(tokens), TokenCount: tokens, OriginKind: pipeline.OriginSentenceGroup}
}

func makeWords(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "w "
	}
	return s
}

func TestMerge_EmptyInput(t *testing.T) {
	require.Empty(t, newMerger().Merge(nil, 50, 400))
}

func TestMerge_AllAboveMinIsNoOp(t *testing.T) {
	in := []pipeline.Chunk{chunk("d#0000", "d", 0, 60), chunk("d#0001", "d", 1, 70)}
	out := newMerger().Merge(in, 50, 400)
	require.Equal(t, in, out)
}

func TestMerge_CombinesUndersizedAdjacent(t *testing.T) {
	in := []pipeline.Chunk{chunk("d#0000", "d", 0, 10), chunk("d#0001", "d", 1, 15)}
	out := newMerger().Merge(in, 50, 400)
	require.Len(t, out, 1)
	require.Equal(t, pipeline.OriginMerged, out[0].OriginKind)
	require.ElementsMatch(t, []string{"d#0000", "d#0001"}, out[0].MergedOf)
}

func TestMerge_NeverCrossesDocumentBoundary(t *testing.T) {
	in := []pipeline.Chunk{chunk("a#0000", "a", 0, 5), chunk("b#0000", "b", 0, 5)}
	out := newMerger().Merge(in, 50, 400)
	require.Len(t, out, 2)
	require.NotEqual(t, out[0].DocID, out[1].DocID)
}

func TestMerge_RespectsMaxTokensBound(t *testing.T) {
	in := []pipeline.Chunk{chunk("d#0000", "d", 0, 30), chunk("d#0001", "d", 1, 30)}
	out := newMerger().Merge(in, 50, 40)
	// 30+30=60 > max 40, so the merger flushes the first as its own pending
	// residual and adopts the second as a new pending.
	require.Len(t, out, 2)
}

func TestMerge_IdempotentOnAlreadyMergedList(t *testing.T) {
	in := []pipeline.Chunk{chunk("d#0000", "d", 0, 10), chunk("d#0001", "d", 1, 15)}
	once := newMerger().Merge(in, 50, 400)
	twice := newMerger().Merge(once, 50, 400)
	require.Equal(t, once, twice)
}

func TestMerge_SingletonResidualAllowed(t *testing.T) {
	in := []pipeline.Chunk{chunk("d#0000", "d", 0, 5)}
	out := newMerger().Merge(in, 50, 400)
	require.Len(t, out, 1)
	require.Equal(t, 5, out[0].TokenCount)
}
