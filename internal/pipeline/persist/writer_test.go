package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

func TestWriter_WritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "20260730_120000")

	pairs := []pipeline.QAPair{
		{Question: "q1", Answer: "a1", QuestionType: pipeline.QuestionFact, SourceChunkID: "d#0000", DocID: "d", ChunkIndex: 0},
	}

	qaJSON, err := w.WriteQAJSON(pairs)
	require.NoError(t, err)
	require.FileExists(t, qaJSON)
	require.Equal(t, filepath.Join(dir, "20260730_120000_qa_pairs.json"), qaJSON)

	qaCSV, err := w.WriteQACSV(pairs)
	require.NoError(t, err)
	require.FileExists(t, qaCSV)

	compact, err := w.WriteCompactCSV(pairs)
	require.NoError(t, err)
	b, err := os.ReadFile(compact)
	require.NoError(t, err)
	require.Contains(t, string(b), "question,answer")
	require.Contains(t, string(b), "q1,a1")

	covPath, err := w.WriteCoverageReport(pipeline.CoverageReport{DatasetTag: "english", TotalChunks: 1})
	require.NoError(t, err)
	require.FileExists(t, covPath)

	sumPath, err := w.WriteSummary(Summary{DatasetTag: "english", TotalQAPairs: 1})
	require.NoError(t, err)
	require.FileExists(t, sumPath)
}

func TestPointID_DeterministicAndClamped(t *testing.T) {
	a := PointID("english", "doc-1", 3)
	b := PointID("english", "doc-1", 3)
	require.Equal(t, a, b)
	require.Less(t, a, uint64(1)<<63)

	c := PointID("english", "doc-1", 4)
	require.NotEqual(t, a, c)
}
