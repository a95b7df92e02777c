package run

import (
	"context"
	"fmt"
	"time"

	"github.com/nakashima2toshio/qagen/internal/observability"
	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/allocator"
	"github.com/nakashima2toshio/qagen/internal/pipeline/chunker"
	"github.com/nakashima2toshio/qagen/internal/pipeline/coverage"
	"github.com/nakashima2toshio/qagen/internal/pipeline/dispatcher"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
	"github.com/nakashima2toshio/qagen/internal/pipeline/merger"
	"github.com/nakashima2toshio/qagen/internal/pipeline/persist"
)

// Options configures one end-to-end run: dataset labeling, chunk sizing,
// Q/A batch allocation, coverage analysis, and where artifacts land.
type Options struct {
	DatasetTag  string
	ProviderTag string
	ModelHint   string // forwarded to the LLM provider on every call, per §4.5's optional model hint
	MinTokens   int
	MaxTokens   int
	Merge       bool
	// QACountBase is the allocator's per-dataset "b" tunable (§4.4), sourced
	// from dataset config, not the dispatcher's per-call chunk batch size.
	QACountBase      int
	MaxDocs          int
	CollectTimeout   time.Duration
	AnalyzeCoverage  bool
	CoverageOverride *float64
	OutputDir        string
	Timestamp        string // UTC "YYYYMMDD_HHMMSS", supplied by the caller and used in artifact file names
}

// Result is everything a caller (cmd/qagen) needs to report a run's outcome
// and pick an exit code.
type Result struct {
	Chunks      []pipeline.Chunk
	Pairs       []pipeline.QAPair
	Diagnostics dispatcher.Diagnostics
	Coverage    *pipeline.CoverageReport
	Paths       persist.Paths
	SummaryPath string
}

// Run executes stages (a)-(d): chunk every document, merge if requested,
// allocate Q/A counts, dispatch and collect Q/A synthesis, optionally
// analyze coverage, then persist every artifact. It returns partial results
// (whatever was produced before ctx was canceled) alongside any error, so a
// caller can still persist partial output and report a runtime-failure exit
// code.
func Run(ctx context.Context, rc *Context, docs []pipeline.Document, opt Options) (Result, error) {
	if opt.MaxDocs > 0 && len(docs) > opt.MaxDocs {
		docs = docs[:opt.MaxDocs]
	}

	tok := rc.Tokenizer
	ch := chunker.New(tok)
	mg := merger.New(tok)
	alloc := allocator.New()

	var allChunks []pipeline.Chunk
	for _, doc := range docs {
		chunks := ch.Split(doc, chunker.Options{MaxTokens: opt.MaxTokens, MinTokens: opt.MinTokens, PreferParagraphs: true})
		if opt.Merge {
			chunks = mg.Merge(chunks, opt.MinTokens, opt.MaxTokens)
		}
		allChunks = append(allChunks, chunks...)
	}
	traceLog := observability.WithTrace(ctx, rc.Logger)
	traceLog.Info().Int("documents", len(docs)).Int("chunks", len(allChunks)).Msg("chunking complete")
	rc.Metrics.ObserveHistogram("qagen_chunks_total", float64(len(allChunks)), map[string]string{"dataset": opt.DatasetTag})

	defaults := allocator.DatasetDefaults{Base: opt.QACountBase}
	reqs := make([]llmprovider.ChunkRequest, 0, len(allChunks))
	for _, c := range allChunks {
		reqs = append(reqs, llmprovider.ChunkRequest{Chunk: c, RequestedQA: alloc.Choose(c, defaults), ModelHint: opt.ModelHint})
	}

	handle, err := rc.Dispatcher.Submit(ctx, reqs, rc.LLM, opt.ProviderTag)
	if err != nil {
		return Result{Chunks: allChunks}, fmt.Errorf("run: submit: %w", err)
	}
	collected, err := rc.Dispatcher.Collect(ctx, handle, opt.CollectTimeout)
	if err != nil {
		return Result{Chunks: allChunks}, fmt.Errorf("run: collect: %w", err)
	}
	for i := range collected.Pairs {
		collected.Pairs[i].DatasetTag = opt.DatasetTag
	}

	rc.Metrics.IncCounter("qagen_tasks_submitted_total", map[string]string{"dataset": opt.DatasetTag})
	rc.Metrics.ObserveHistogram("qagen_tasks_success_total", float64(collected.Diagnostics.Success), map[string]string{"dataset": opt.DatasetTag})
	rc.Metrics.ObserveHistogram("qagen_tasks_failure_total", float64(collected.Diagnostics.Failure), map[string]string{"dataset": opt.DatasetTag})

	result := Result{
		Chunks:      allChunks,
		Pairs:       collected.Pairs,
		Diagnostics: collected.Diagnostics,
	}

	if opt.AnalyzeCoverage {
		analyzer := coverage.New(rc.Embedder)
		lang := pipeline.LangEnglish
		if len(docs) > 0 {
			lang = docs[0].Language
		}
		report, err := analyzer.Analyze(ctx, allChunks, collected.Pairs, opt.DatasetTag, coverage.DefaultThresholds(lang), opt.CoverageOverride)
		if err != nil {
			return result, fmt.Errorf("run: coverage analysis: %w", err)
		}
		report.GeneratedAt = rc.Clock.Now().UTC()
		result.Coverage = &report
	}

	writer := persist.New(opt.OutputDir, opt.Timestamp)
	var paths persist.Paths
	var perr error
	if paths.QAJSON, perr = writer.WriteQAJSON(result.Pairs); perr != nil {
		return result, fmt.Errorf("run: persist qa json: %w", perr)
	}
	if paths.QACSV, perr = writer.WriteQACSV(result.Pairs); perr != nil {
		return result, fmt.Errorf("run: persist qa csv: %w", perr)
	}
	if paths.CompactCSV, perr = writer.WriteCompactCSV(result.Pairs); perr != nil {
		return result, fmt.Errorf("run: persist compact csv: %w", perr)
	}
	if result.Coverage != nil {
		if paths.CoverageJSON, perr = writer.WriteCoverageReport(*result.Coverage); perr != nil {
			return result, fmt.Errorf("run: persist coverage report: %w", perr)
		}
	}
	result.Paths = paths

	summary := persist.Summary{
		DatasetTag: opt.DatasetTag, TotalChunks: len(allChunks), TotalQAPairs: len(result.Pairs),
		Submitted: result.Diagnostics.Submitted, Success: result.Diagnostics.Success,
		Failure: result.Diagnostics.Failure, Error: result.Diagnostics.Error,
		QAJSONPath: paths.QAJSON, QACSVPath: paths.QACSV, CompactCSVPath: paths.CompactCSV,
		CoverageJSONPath: paths.CoverageJSON,
	}
	if result.Coverage != nil {
		summary.CoverageRate = result.Coverage.CoverageRate
	}
	summaryPath, err := writer.WriteSummary(summary)
	if err != nil {
		return result, fmt.Errorf("run: persist summary: %w", err)
	}
	result.SummaryPath = summaryPath

	return result, nil
}
