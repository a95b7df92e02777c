// Package coverage measures how well a set of generated Q/A pairs covers a
// set of chunks, by embedding both sides and thresholding their cosine
// similarity. Grounded on internal/rag/ranker's embedding-distance
// utilities, generalized from document reranking to chunk/QA coverage
// scoring.
package coverage

import (
	"context"
	"fmt"
	"math"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/embedprovider"
)

// DefaultThresholds returns the dataset-specific strict/standard/lenient
// threshold band for a document language. Japanese Wikipedia-like corpora
// use a stricter band; everything else uses the general-purpose band.
func DefaultThresholds(lang pipeline.Language) pipeline.ThresholdSet {
	if lang == pipeline.LangJapanese {
		return pipeline.ThresholdSet{Strict: 0.85, Standard: 0.75, Lenient: 0.65}
	}
	return pipeline.ThresholdSet{Strict: 0.80, Standard: 0.65, Lenient: 0.50}
}

const embedBatchSize = 64

// Analyzer computes a CoverageReport from a merged chunk set and the Q/A
// pairs generated from it.
type Analyzer struct {
	embedder embedprovider.Provider
}

func New(embedder embedprovider.Provider) *Analyzer {
	return &Analyzer{embedder: embedder}
}

// Analyze runs the coverage algorithm end to end: embed both sides, build
// the |C|x|Q| similarity matrix, score every threshold in the set, and
// bucket chunks by length and position.
func (a *Analyzer) Analyze(ctx context.Context, chunks []pipeline.Chunk, pairs []pipeline.QAPair, datasetTag string, thresholds pipeline.ThresholdSet, override *float64) (pipeline.CoverageReport, error) {
	if len(chunks) == 0 {
		return pipeline.CoverageReport{DatasetTag: datasetTag, MultiThreshold: thresholds}, nil
	}

	chunkVecs, err := a.embedAll(ctx, chunkTexts(chunks))
	if err != nil {
		return pipeline.CoverageReport{}, fmt.Errorf("coverage: embed chunks: %w", err)
	}
	qaVecs, err := a.embedAll(ctx, qaTexts(pairs))
	if err != nil {
		return pipeline.CoverageReport{}, fmt.Errorf("coverage: embed qa pairs: %w", err)
	}

	maxSim := make([]float64, len(chunks))
	for i, cv := range chunkVecs {
		best := -1.0
		for _, qv := range qaVecs {
			if s := cosine(cv, qv); s > best {
				best = s
			}
		}
		if len(qaVecs) == 0 {
			best = 0
		}
		maxSim[i] = best
	}

	primary := thresholds.Standard
	if override != nil {
		primary = *override
	}

	results := map[string]pipeline.ThresholdResult{
		"strict":   scoreThreshold(chunks, maxSim, thresholds.Strict),
		"standard": scoreThreshold(chunks, maxSim, thresholds.Standard),
		"lenient":  scoreThreshold(chunks, maxSim, thresholds.Lenient),
	}
	primaryResult := scoreThreshold(chunks, maxSim, primary)

	analysis := bucketAnalysis(chunks, maxSim, primary)

	return pipeline.CoverageReport{
		DatasetTag:        datasetTag,
		TotalChunks:       len(chunks),
		CoveredChunks:     primaryResult.Covered,
		CoverageRate:      primaryResult.Rate,
		Threshold:         primary,
		MultiThreshold:    thresholds,
		ThresholdResults:  results,
		UncoveredChunks:   primaryResult.UncoveredIDs,
		MaxSimilarities:   maxSim,
		ChunkAnalysis:     analysis,
		OptimalThresholds: thresholds,
	}, nil
}

func (a *Analyzer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := a.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func chunkTexts(chunks []pipeline.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func qaTexts(pairs []pipeline.QAPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Question + " " + p.Answer
	}
	return out
}

// cosine computes cosine similarity between raw vectors; scores are
// reported unnormalized, without any post-hoc rescaling.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// scoreThreshold runs an inclusive comparison against tau, with the gap
// reported for chunks that fall short.
func scoreThreshold(chunks []pipeline.Chunk, maxSim []float64, tau float64) pipeline.ThresholdResult {
	var res pipeline.ThresholdResult
	for i, c := range chunks {
		if maxSim[i] >= tau {
			res.Covered++
			continue
		}
		res.UncoveredIDs = append(res.UncoveredIDs, c.ChunkID)
		res.Gaps = append(res.Gaps, tau-maxSim[i])
	}
	if len(chunks) > 0 {
		res.Rate = float64(res.Covered) / float64(len(chunks))
	}
	return res
}
