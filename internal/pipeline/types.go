// Package pipeline holds the domain types shared across the Q/A generation
// and coverage pipeline: documents, chunks, Q/A pairs, dispatch tasks, and
// coverage reports. Concrete behavior lives in the sibling packages
// (chunker, merger, allocator, llmprovider, embedprovider, dispatcher,
// coverage, persist); this package only carries the data model and the
// closed enums the rest of the pipeline decodes and rejects unknown values
// against, per the "dynamic dispatch -> tagged variants" design note.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Language is the declared language of a Document, used to pick the
// sentence terminator the chunker splits on.
type Language string

const (
	LangJapanese Language = "ja"
	LangEnglish  Language = "en"
)

// Document is an immutable unit of input text.
type Document struct {
	DocID    string   `json:"doc_id"`
	Text     string   `json:"text"`
	Language Language `json:"language"`
	Title    string   `json:"title,omitempty"`
}

// ChunkOriginKind is a closed enum describing how a Chunk was produced.
type ChunkOriginKind string

const (
	OriginParagraph    ChunkOriginKind = "paragraph"
	OriginSentenceGroup ChunkOriginKind = "sentence_group"
	OriginForcedSplit   ChunkOriginKind = "forced_split"
	OriginMerged        ChunkOriginKind = "merged"
)

// Valid reports whether k is one of the known origin kinds.
func (k ChunkOriginKind) Valid() bool {
	switch k {
	case OriginParagraph, OriginSentenceGroup, OriginForcedSplit, OriginMerged:
		return true
	}
	return false
}

// UnmarshalJSON rejects any origin kind outside the closed enum.
func (k *ChunkOriginKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	candidate := ChunkOriginKind(s)
	if !candidate.Valid() {
		return fmt.Errorf("pipeline: unknown chunk origin kind %q", s)
	}
	*k = candidate
	return nil
}

// Chunk is a contiguous slice of a Document's text with provenance and a
// token count computed by the shared Tokenizer.
type Chunk struct {
	ChunkID    string          `json:"chunk_id"`
	DocID      string          `json:"doc_id"`
	DocIndex   int             `json:"doc_index"`
	ChunkIndex int             `json:"chunk_index"`
	Text       string          `json:"text"`
	TokenCount int             `json:"token_count"`
	OriginKind ChunkOriginKind `json:"origin_kind"`
	Sentences  []string        `json:"sentences,omitempty"`
	MergedOf   []string        `json:"merged_of,omitempty"`
}

// DeriveChunkID builds the stable chunk_id from doc_id and chunk index, per
// the Data Model's "chunk_id (derived from doc_id + index)".
func DeriveChunkID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%04d", docID, chunkIndex)
}

// QuestionType is a closed enum; decode rejects unknown values.
type QuestionType string

const (
	QuestionFact        QuestionType = "fact"
	QuestionReason       QuestionType = "reason"
	QuestionComparison   QuestionType = "comparison"
	QuestionApplication  QuestionType = "application"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionFact, QuestionReason, QuestionComparison, QuestionApplication:
		return true
	}
	return false
}

func (t *QuestionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	candidate := QuestionType(s)
	if !candidate.Valid() {
		return fmt.Errorf("pipeline: unknown question type %q", s)
	}
	*t = candidate
	return nil
}

// QAPair is one question/answer synthesized from exactly one Chunk.
type QAPair struct {
	Question      string       `json:"question"`
	Answer        string       `json:"answer"`
	QuestionType  QuestionType `json:"question_type"`
	SourceChunkID string       `json:"source_chunk_id"`
	DocID         string       `json:"doc_id"`
	DatasetTag    string       `json:"dataset_tag"`
	ChunkIndex    int          `json:"chunk_index"`
	ProviderTag   string       `json:"provider_tag,omitempty"`
}

// TaskStatus is a closed enum for a Task's lifecycle state.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailure TaskStatus = "failure"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailure
}

// Task tracks one chunk's Q/A synthesis job through the dispatcher.
type Task struct {
	TaskID       string     `json:"task_id"`
	ChunkRef     Chunk      `json:"chunk_ref"`
	RequestedQA  int        `json:"requested_qa"`
	Status       TaskStatus `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	Result       []QAPair   `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// ProviderKind is a closed tagged variant selecting an LLM or embedding
// backend, per the "dynamic dispatch -> tagged variant" design note.
type ProviderKind string

const (
	ProviderGemini    ProviderKind = "gemini"
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
)

func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// ThresholdSet names the three coverage thresholds a dataset is judged at.
type ThresholdSet struct {
	Strict   float64 `json:"strict"`
	Standard float64 `json:"standard"`
	Lenient  float64 `json:"lenient"`
}

// LengthBucket and PositionBucket classify chunks for coverage bucketing.
type LengthBucket string

const (
	LengthShort  LengthBucket = "short"
	LengthMedium LengthBucket = "medium"
	LengthLong   LengthBucket = "long"
)

type PositionBucket string

const (
	PositionBeginning PositionBucket = "beginning"
	PositionMiddle    PositionBucket = "middle"
	PositionEnd       PositionBucket = "end"
)

// BucketStats holds the coverage rate computed for one length or position
// bucket under the primary threshold.
type BucketStats struct {
	Bucket   string  `json:"bucket"`
	Total    int     `json:"total"`
	Covered  int     `json:"covered"`
	Rate     float64 `json:"rate"`
	Insight  string  `json:"insight,omitempty"`
}

// ThresholdResult is the per-threshold coverage outcome.
type ThresholdResult struct {
	Covered       int       `json:"covered"`
	Rate          float64   `json:"rate"`
	UncoveredIDs  []string  `json:"uncovered"`
	Gaps          []float64 `json:"gaps"`
}

// CoverageReport is produced once per run after all Q/A pairs are collected.
type CoverageReport struct {
	DatasetTag        string                     `json:"dataset_type"`
	TotalChunks        int                        `json:"total_chunks"`
	CoveredChunks      int                        `json:"covered_chunks"`
	CoverageRate        float64                    `json:"coverage_rate"`
	Threshold           float64                    `json:"threshold"`
	MultiThreshold       ThresholdSet               `json:"multi_threshold"`
	ThresholdResults     map[string]ThresholdResult  `json:"threshold_results"`
	UncoveredChunks      []string                   `json:"uncovered_chunks"`
	MaxSimilarities      []float64                  `json:"max_similarities"`
	ChunkAnalysis        ChunkAnalysis              `json:"chunk_analysis"`
	OptimalThresholds    ThresholdSet               `json:"optimal_thresholds"`
	GeneratedAt          time.Time                  `json:"generated_at"`
}

// ChunkAnalysis groups the by_length and by_position bucket stats plus a
// short natural-language summary of under-covered buckets.
type ChunkAnalysis struct {
	ByLength   []BucketStats `json:"by_length"`
	ByPosition []BucketStats `json:"by_position"`
	Summary    []string      `json:"summary"`
}
