// Package ingestfile reads an ad-hoc input file into Document values, as an
// alternative to a named dataset tag. Grounded on the CSV/JSON reading
// idioms found throughout the file-export helpers, generalized here to the
// four accepted shapes.
package ingestfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// fallbackColumns is the recognized-field concatenation order used when a
// CSV has no combined_text column.
var fallbackColumns = []string{"text", "content", "body", "document", "answer", "question"}

// Read dispatches on file extension: .csv, .json, .jsonl/.ndjson (JSON
// Lines); everything else is read as plain text, one document per line.
func Read(path string, lang pipeline.Language) ([]pipeline.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestfile: read %s: %w", path, err)
	}
	base := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(b, base, lang)
	case ".json":
		return readJSON(b, base, lang)
	case ".jsonl", ".ndjson":
		return readJSONL(b, base, lang)
	default:
		return readLines(b, base, lang)
	}
}

func readCSV(b []byte, source string, lang pipeline.Language) ([]pipeline.Document, error) {
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingestfile: parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var docs []pipeline.Document
	combinedIdx, hasCombined := colIndex["combined_text"]
	for i, row := range rows[1:] {
		var text string
		if hasCombined && combinedIdx < len(row) {
			text = row[combinedIdx]
		} else {
			var parts []string
			for _, col := range fallbackColumns {
				if idx, ok := colIndex[col]; ok && idx < len(row) && strings.TrimSpace(row[idx]) != "" {
					parts = append(parts, row[idx])
				}
			}
			text = strings.Join(parts, "\n\n")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, pipeline.Document{
			DocID:    fmt.Sprintf("%s#row%04d", source, i),
			Text:     text,
			Language: lang,
		})
	}
	return docs, nil
}

func readJSON(b []byte, source string, lang pipeline.Language) ([]pipeline.Document, error) {
	var arr []map[string]any
	if err := jsonv2.Unmarshal(b, &arr); err != nil {
		var single map[string]any
		if err2 := jsonv2.Unmarshal(b, &single); err2 != nil {
			return nil, fmt.Errorf("ingestfile: parse json: %w", err)
		}
		arr = []map[string]any{single}
	}
	return docsFromObjects(arr, source, lang), nil
}

func readJSONL(b []byte, source string, lang pipeline.Language) ([]pipeline.Document, error) {
	var objs []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := jsonv2.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("ingestfile: parse jsonl line: %w", err)
		}
		objs = append(objs, obj)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingestfile: scan jsonl: %w", err)
	}
	return docsFromObjects(objs, source, lang), nil
}

func docsFromObjects(objs []map[string]any, source string, lang pipeline.Language) []pipeline.Document {
	var docs []pipeline.Document
	for i, obj := range objs {
		text := textFromObject(obj)
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, pipeline.Document{
			DocID:    fmt.Sprintf("%s#row%04d", source, i),
			Text:     text,
			Language: lang,
		})
	}
	return docs
}

func textFromObject(obj map[string]any) string {
	for _, col := range append([]string{"combined_text"}, fallbackColumns...) {
		if v, ok := obj[col]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func readLines(b []byte, source string, lang pipeline.Language) ([]pipeline.Document, error) {
	var docs []pipeline.Document
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	i := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		docs = append(docs, pipeline.Document{
			DocID:    fmt.Sprintf("%s#row%04d", source, i),
			Text:     line,
			Language: lang,
		})
		i++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingestfile: scan lines: %w", err)
	}
	return docs, nil
}
