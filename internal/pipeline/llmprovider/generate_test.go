package llmprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

func TestGenerateWithFallback_SucceedsDirectly(t *testing.T) {
	f := NewFake(pipeline.ProviderGemini)
	res, err := GenerateWithFallback(context.Background(), f, Prompt{System: "s", User: "u"}, "")
	require.NoError(t, err)
	require.Len(t, res.QAPairs, 2)
}

func TestGenerateWithFallback_FallsBackToText(t *testing.T) {
	f := NewFake(pipeline.ProviderOpenAI)
	f.FailFirstN = 1000 // structured always fails
	res, err := GenerateWithFallback(context.Background(), f, Prompt{System: "s", User: "u"}, "")
	require.NoError(t, err)
	require.Len(t, res.QAPairs, 1)
}

func TestExtractLargestJSONObject_PicksBiggestMatch(t *testing.T) {
	text := `noise {"qa_pairs":[{"question":"q1","answer":"a1","question_type":"fact"}]} more noise ` +
		`{"qa_pairs":[{"question":"q1","answer":"a1","question_type":"fact"},{"question":"q2","answer":"a2","question_type":"reason"}]}`
	res, err := ExtractLargestJSONObject(text)
	require.NoError(t, err)
	require.Len(t, res.QAPairs, 2)
}

func TestExtractLargestJSONObject_NoMatch(t *testing.T) {
	_, err := ExtractLargestJSONObject("not json at all")
	require.Error(t, err)
}

func TestDistributeBatch_AssignsInOrderDiscardsSurplus(t *testing.T) {
	pairs := make([]QAPairRaw, 5)
	for i := range pairs {
		pairs[i] = QAPairRaw{Question: "q"}
	}
	out := DistributeBatch(pairs, []int{2, 2})
	require.Len(t, out[0], 2)
	require.Len(t, out[1], 2)
}

func TestDistributeBatch_ToleratesDeficit(t *testing.T) {
	pairs := make([]QAPairRaw, 1)
	out := DistributeBatch(pairs, []int{2, 2})
	require.Len(t, out[0], 1)
	require.Len(t, out[1], 0)
}

func TestBuildPrompt_SingleAndBatch(t *testing.T) {
	chunk := pipeline.Chunk{Text: "hello world"}
	single := BuildPrompt([]ChunkRequest{{Chunk: chunk, RequestedQA: 3}})
	require.Contains(t, single.User, "exactly 3")

	batch := BuildPrompt([]ChunkRequest{{Chunk: chunk, RequestedQA: 2}, {Chunk: chunk, RequestedQA: 1}})
	require.Contains(t, batch.User, "1. (2 pairs requested)")
	require.Contains(t, batch.User, "2. (1 pairs requested)")
}
