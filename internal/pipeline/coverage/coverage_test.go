package coverage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/embedprovider"
)

func TestAnalyze_EmptyChunksReturnsZeroReport(t *testing.T) {
	a := New(embedprovider.NewDeterministic(16, true, pipeline.ProviderGemini))
	rep, err := a.Analyze(context.Background(), nil, nil, "english", DefaultThresholds(pipeline.LangEnglish), nil)
	require.NoError(t, err)
	require.Equal(t, 0, rep.TotalChunks)
}

func TestAnalyze_ExactTextMatchIsFullyCovered(t *testing.T) {
	embedder := embedprovider.NewDeterministic(32, true, pipeline.ProviderGemini)
	a := New(embedder)

	chunks := []pipeline.Chunk{
		{ChunkID: "d#0000", DocID: "d", ChunkIndex: 0, Text: "the sun rises in the east", TokenCount: 6},
	}
	pairs := []pipeline.QAPair{
		{Question: "the sun rises in", Answer: "the east", SourceChunkID: "d#0000", DocID: "d"},
	}

	rep, err := a.Analyze(context.Background(), chunks, pairs, "english", DefaultThresholds(pipeline.LangEnglish), nil)
	require.NoError(t, err)
	require.Equal(t, 1, rep.TotalChunks)
	require.Len(t, rep.MaxSimilarities, 1)
	require.InDelta(t, 1.0, rep.MaxSimilarities[0], 1e-6)
	require.Equal(t, 1, rep.CoveredChunks)
}

func TestAnalyze_UnrelatedQAIsUncovered(t *testing.T) {
	embedder := embedprovider.NewDeterministic(32, true, pipeline.ProviderGemini)
	a := New(embedder)

	chunks := []pipeline.Chunk{
		{ChunkID: "d#0000", DocID: "d", ChunkIndex: 0, Text: "photosynthesis converts light into chemical energy", TokenCount: 6},
	}
	pairs := []pipeline.QAPair{
		{Question: "what color is the sky", Answer: "blue on a clear day", SourceChunkID: "other", DocID: "other"},
	}

	override := 0.99
	rep, err := a.Analyze(context.Background(), chunks, pairs, "english", DefaultThresholds(pipeline.LangEnglish), &override)
	require.NoError(t, err)
	require.Equal(t, 0, rep.CoveredChunks)
	require.Len(t, rep.UncoveredChunks, 1)
}

func TestBucketAnalysis_FlagsLowCoverage(t *testing.T) {
	chunks := []pipeline.Chunk{
		{ChunkID: "a#0000", DocID: "a", ChunkIndex: 0, TokenCount: 50},
		{ChunkID: "a#0001", DocID: "a", ChunkIndex: 1, TokenCount: 50},
	}
	maxSim := []float64{0.1, 0.2}
	analysis := bucketAnalysis(chunks, maxSim, 0.65)
	require.NotEmpty(t, analysis.Summary)
	found := false
	for _, s := range analysis.ByLength {
		if s.Bucket == string(pipeline.LengthShort) {
			require.Equal(t, 2, s.Total)
			require.Equal(t, 0, s.Covered)
			found = true
		}
	}
	require.True(t, found)
}

func TestLengthBucket_Bands(t *testing.T) {
	require.Equal(t, pipeline.LengthShort, lengthBucket(50))
	require.Equal(t, pipeline.LengthMedium, lengthBucket(150))
	require.Equal(t, pipeline.LengthLong, lengthBucket(250))
}

func TestPositionBucket_Bands(t *testing.T) {
	require.Equal(t, pipeline.PositionBeginning, positionBucket(0, 10))
	require.Equal(t, pipeline.PositionMiddle, positionBucket(5, 10))
	require.Equal(t, pipeline.PositionEnd, positionBucket(9, 10))
}
