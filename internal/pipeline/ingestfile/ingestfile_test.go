package ingestfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead_CSVPrefersCombinedText(t *testing.T) {
	path := writeTemp(t, "in.csv", "Combined_Text,text\n\"hello world\",\"ignored\"\n")
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "hello world", docs[0].Text)
}

func TestRead_CSVFallsBackToRecognizedColumns(t *testing.T) {
	path := writeTemp(t, "in.csv", "text,content\n\"part one\",\"part two\"\n")
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Contains(t, docs[0].Text, "part one")
	require.Contains(t, docs[0].Text, "part two")
}

func TestRead_CSVDropsEmptyRows(t *testing.T) {
	path := writeTemp(t, "in.csv", "text\n\"\"\n\"keep me\"\n")
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestRead_JSONArray(t *testing.T) {
	path := writeTemp(t, "in.json", `[{"text":"a"},{"content":"b"}]`)
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestRead_JSONSingleObject(t *testing.T) {
	path := writeTemp(t, "in.json", `{"document":"solo"}`)
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "solo", docs[0].Text)
}

func TestRead_JSONL(t *testing.T) {
	path := writeTemp(t, "in.jsonl", "{\"text\":\"one\"}\n{\"text\":\"two\"}\n")
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestRead_LineDelimitedText(t *testing.T) {
	path := writeTemp(t, "in.txt", "first line\n\nsecond line\n")
	docs, err := Read(path, pipeline.LangEnglish)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}
