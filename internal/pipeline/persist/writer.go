// Package persist writes the per-run artifacts: Q/A JSON and CSV files, a
// compact question/answer CSV, a CoverageReport JSON, a run summary JSON,
// and vector-store ingestion. Grounded on the persistence/databases
// package for the vector-store half and on encoding/csv idioms used
// throughout the file-export helpers for the tabular half.
package persist

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// Paths collects the file paths written by one run, returned to the caller
// for the summary JSON and for logging.
type Paths struct {
	QAJSON        string
	QACSV         string
	CompactCSV    string
	CoverageJSON  string
	SummaryJSON   string
}

// Writer writes artifacts under one output directory, named with a shared
// UTC run timestamp (YYYYMMDD_HHMMSS) so every artifact from one run sorts
// and groups together.
type Writer struct {
	dir       string
	timestamp string
}

func New(dir, timestamp string) *Writer {
	return &Writer{dir: dir, timestamp: timestamp}
}

func (w *Writer) path(name string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s", w.timestamp, name))
}

// WriteQAJSON writes the full QAPair array with every field.
func (w *Writer) WriteQAJSON(pairs []pipeline.QAPair) (string, error) {
	path := w.path("qa_pairs.json")
	if pairs == nil {
		pairs = []pipeline.QAPair{}
	}
	b, err := jsonv2.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("persist: marshal qa json: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("persist: create output dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("persist: write qa json: %w", err)
	}
	return path, nil
}

var qaCSVHeader = []string{"question", "answer", "question_type", "source_chunk_id", "doc_id", "dataset_tag", "chunk_index", "provider_tag"}

// WriteQACSV writes the full QAPair schema as CSV.
func (w *Writer) WriteQACSV(pairs []pipeline.QAPair) (string, error) {
	path := w.path("qa_pairs.csv")
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("persist: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("persist: create qa csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(qaCSVHeader); err != nil {
		return "", fmt.Errorf("persist: write qa csv header: %w", err)
	}
	for _, p := range pairs {
		row := []string{
			p.Question, p.Answer, string(p.QuestionType), p.SourceChunkID, p.DocID,
			p.DatasetTag, fmt.Sprintf("%d", p.ChunkIndex), p.ProviderTag,
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("persist: write qa csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("persist: flush qa csv: %w", err)
	}
	return path, nil
}

// WriteCompactCSV writes only question,answer columns, for easy
// re-ingestion into other tooling.
func (w *Writer) WriteCompactCSV(pairs []pipeline.QAPair) (string, error) {
	path := w.path("qa_compact.csv")
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("persist: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("persist: create compact csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"question", "answer"}); err != nil {
		return "", fmt.Errorf("persist: write compact csv header: %w", err)
	}
	for _, p := range pairs {
		if err := cw.Write([]string{p.Question, p.Answer}); err != nil {
			return "", fmt.Errorf("persist: write compact csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("persist: flush compact csv: %w", err)
	}
	return path, nil
}

// WriteCoverageReport writes the CoverageReport JSON, carrying
// pipeline.CoverageReport's fields verbatim via its json tags.
func (w *Writer) WriteCoverageReport(report pipeline.CoverageReport) (string, error) {
	path := w.path("coverage_report.json")
	b, err := jsonv2.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("persist: marshal coverage report: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("persist: create output dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("persist: write coverage report: %w", err)
	}
	return path, nil
}

// Summary is the counts-and-paths record written once per run.
type Summary struct {
	DatasetTag      string  `json:"dataset_tag"`
	TotalChunks     int     `json:"total_chunks"`
	TotalQAPairs    int     `json:"total_qa_pairs"`
	CoverageRate    float64 `json:"coverage_rate"`
	Submitted       int     `json:"submitted"`
	Success         int     `json:"success"`
	Failure         int     `json:"failure"`
	Error           int     `json:"error"`
	QAJSONPath      string  `json:"qa_json_path"`
	QACSVPath       string  `json:"qa_csv_path"`
	CompactCSVPath  string  `json:"compact_csv_path"`
	CoverageJSONPath string `json:"coverage_json_path,omitempty"`
}

func (w *Writer) WriteSummary(s Summary) (string, error) {
	path := w.path("summary.json")
	b, err := jsonv2.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("persist: marshal summary: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("persist: create output dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("persist: write summary: %w", err)
	}
	return path, nil
}
