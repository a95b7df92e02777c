// Command qagen runs one end-to-end Q/A generation and coverage pass over
// a document corpus: chunk, dispatch Q/A synthesis across a worker pool,
// optionally analyze coverage, and persist every artifact. Flag wiring is
// grounded on cmd/embedctl/main.go's stdlib flag usage and fail-fast
// log.Fatal convention; signal handling is grounded on
// cmd/orchestrator/main.go's signal.NotifyContext soft-cancel wiring.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"os/signal"

	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/config"
	"github.com/nakashima2toshio/qagen/internal/observability"
	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/dispatcher"
	"github.com/nakashima2toshio/qagen/internal/pipeline/embedprovider"
	"github.com/nakashima2toshio/qagen/internal/pipeline/ingestfile"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
	"github.com/nakashima2toshio/qagen/internal/pipeline/persist"
	"github.com/nakashima2toshio/qagen/internal/pipeline/run"
	"github.com/nakashima2toshio/qagen/internal/pipeline/tokenizer"
)

const (
	exitOK            = 0
	exitConfigError   = 1
	exitRuntimeError  = 2
	exitUserCancelled = 130
)

func main() {
	os.Exit(main1())
}

func main1() int {
	var (
		dataset           = flag.String("dataset", "", "dataset tag naming a corpus whose acquisition is out of scope; documents are read from stdin")
		inputFile         = flag.String("input-file", "", "path to a CSV/JSON/JSONL/line-delimited input file (see ingestfile package)")
		model             = flag.String("model", "", "model hint passed to the LLM provider")
		batchSize         = flag.Int("batch-size", 1, "Q/A synthesis batch size, 1..5")
		merge             = flag.Bool("merge", true, "merge undersized adjacent chunks before dispatch")
		minTokens         = flag.Int("min-tokens", 150, "minimum tokens per chunk after merging")
		maxTokens         = flag.Int("max-tokens", 400, "maximum tokens per chunk")
		maxDocs           = flag.Int("max-docs", 0, "optional cap on the number of documents processed, 0 = no cap")
		workers           = flag.Int("workers", 4, "dispatcher worker count")
		coverageThreshold = flag.Float64("coverage-threshold", 0, "override the primary coverage threshold, 0 = use dataset defaults")
		analyzeCoverage   = flag.Bool("analyze-coverage", false, "run the coverage analyzer after dispatch")
		outputDir         = flag.String("output-dir", "./output", "directory artifacts are written to")
		dispatcherKind    = flag.String("dispatcher", "local", "dispatcher backend: local, broker, or kafka")
		configPath        = flag.String("config", "config.yaml", "path to config.yaml")
		lang              = flag.String("lang", "en", "document language: en or ja")
	)
	flag.Parse()

	if (*dataset == "") == (*inputFile == "") {
		fmt.Fprintln(os.Stderr, "qagen: exactly one of -dataset or -input-file is required")
		return exitConfigError
	}
	if *batchSize < 1 || *batchSize > 5 {
		fmt.Fprintln(os.Stderr, "qagen: -batch-size must be in 1..5")
		return exitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qagen: load config: %v\n", err)
		return exitConfigError
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if raw, err := json.Marshal(cfg); err == nil {
		logger.Debug().RawJSON("config", observability.RedactJSON(raw)).Msg("loaded config")
	}

	docLang := pipeline.LangEnglish
	if strings.ToLower(*lang) == "ja" {
		docLang = pipeline.LangJapanese
	}

	datasetTag := *dataset
	var docs []pipeline.Document
	if *inputFile != "" {
		datasetTag = strings.TrimSuffix(filepath.Base(*inputFile), filepath.Ext(*inputFile))
		docs, err = ingestfile.Read(*inputFile, docLang)
		if err != nil {
			fmt.Fprintf(os.Stderr, "qagen: read input file: %v\n", err)
			return exitConfigError
		}
	} else {
		docs, err = readStdinDocuments(datasetTag, docLang)
		if err != nil {
			fmt.Fprintf(os.Stderr, "qagen: read stdin: %v\n", err)
			return exitConfigError
		}
	}

	llmReg, embedReg, err := buildProviderRegistries(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qagen: configure providers: %v\n", err)
		return exitConfigError
	}
	llm, err := llmReg.Get(pipeline.ProviderKind(cfg.LLMProvider))
	if err != nil {
		fmt.Fprintf(os.Stderr, "qagen: %v\n", err)
		return exitConfigError
	}
	embedder, ok := embedReg.Get(pipeline.ProviderKind(cfg.EmbeddingProvider))
	if !ok {
		fmt.Fprintf(os.Stderr, "qagen: unknown embedding provider %q\n", cfg.EmbeddingProvider)
		return exitConfigError
	}

	disp, err := buildDispatcher(*dispatcherKind, *workers, *batchSize, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qagen: configure dispatcher: %v\n", err)
		return exitConfigError
	}
	defer disp.Close()

	tok, err := buildTokenizer(cfg.TokenizerKind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qagen: configure tokenizer: %v\n", err)
		return exitConfigError
	}

	rc := run.New(llm, embedder, disp,
		run.WithLogger(logger),
		run.WithMetrics(run.NewOtelMetrics()),
		run.WithTokenizer(tok),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var override *float64
	if *coverageThreshold > 0 {
		override = coverageThreshold
	}

	opt := run.Options{
		DatasetTag:       datasetTag,
		ProviderTag:      string(llm.Kind()),
		ModelHint:        *model,
		MinTokens:        *minTokens,
		MaxTokens:        *maxTokens,
		Merge:            *merge,
		QACountBase:      cfg.QACountBase,
		MaxDocs:          *maxDocs,
		CollectTimeout:   10 * time.Minute,
		AnalyzeCoverage:  *analyzeCoverage,
		CoverageOverride: override,
		OutputDir:        *outputDir,
		Timestamp:        time.Now().UTC().Format("20060102_150405"),
	}

	result, runErr := run.Run(ctx, rc, docs, opt)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("run failed")
		if ctx.Err() != nil {
			return exitUserCancelled
		}
		return exitRuntimeError
	}

	logger.Info().
		Int("chunks", len(result.Chunks)).
		Int("qa_pairs", len(result.Pairs)).
		Int("success", result.Diagnostics.Success).
		Int("failure", result.Diagnostics.Failure).
		Int("error", result.Diagnostics.Error).
		Str("summary", result.SummaryPath).
		Msg("run complete")

	if cfg.PostgresDSN != "" {
		if err := recordRunHistory(ctx, cfg.PostgresDSN, result, datasetTag); err != nil {
			logger.Warn().Err(err).Msg("failed to record run history")
		}
	}

	return exitOK
}

func recordRunHistory(ctx context.Context, dsn string, result run.Result, datasetTag string) error {
	store, err := persist.NewRunHistoryStore(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	var coverageRate float64
	if result.Coverage != nil {
		coverageRate = result.Coverage.CoverageRate
	}
	summary := persist.Summary{
		DatasetTag:   datasetTag,
		TotalChunks:  len(result.Chunks),
		TotalQAPairs: len(result.Pairs),
		CoverageRate: coverageRate,
		Submitted:    result.Diagnostics.Submitted,
		Success:      result.Diagnostics.Success,
		Failure:      result.Diagnostics.Failure,
		Error:        result.Diagnostics.Error,
	}
	return store.Record(ctx, summary, result.SummaryPath, time.Now())
}

func readStdinDocuments(datasetTag string, lang pipeline.Language) ([]pipeline.Document, error) {
	var docs []pipeline.Document
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	i := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		docs = append(docs, pipeline.Document{
			DocID:    fmt.Sprintf("%s#stdin%04d", datasetTag, i),
			Text:     line,
			Language: lang,
		})
		i++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func buildProviderRegistries(cfg config.Config) (*llmprovider.Registry, *embedprovider.Registry, error) {
	llmReg := llmprovider.NewRegistry()
	embedReg := embedprovider.NewRegistry()
	ctx := context.Background()

	if cfg.GeminiAPIKey != "" {
		g, err := llmprovider.NewGeminiProvider(ctx, cfg.GeminiAPIKey, "gemini-2.0-flash")
		if err != nil {
			return nil, nil, fmt.Errorf("gemini llm provider: %w", err)
		}
		llmReg.Register(g)
		ge, err := embedprovider.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, "gemini-embedding-001")
		if err != nil {
			return nil, nil, fmt.Errorf("gemini embedding provider: %w", err)
		}
		embedReg.Register(ge)
	}
	if cfg.OpenAIAPIKey != "" {
		o, err := llmprovider.NewOpenAIProvider(cfg.OpenAIAPIKey, "gpt-4o-mini")
		if err != nil {
			return nil, nil, fmt.Errorf("openai llm provider: %w", err)
		}
		llmReg.Register(o)
		oe, err := embedprovider.NewOpenAIEmbedder(cfg.OpenAIAPIKey, "text-embedding-3-small")
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedding provider: %w", err)
		}
		embedReg.Register(oe)
	}
	if cfg.AnthropicAPIKey != "" {
		a, err := llmprovider.NewAnthropicProvider(cfg.AnthropicAPIKey, "claude-3-5-haiku-latest")
		if err != nil {
			return nil, nil, fmt.Errorf("anthropic llm provider: %w", err)
		}
		llmReg.Register(a)
	}
	return llmReg, embedReg, nil
}

func buildDispatcher(kind string, workers, batchSize int, cfg config.Config, logger zerolog.Logger) (dispatcher.Dispatcher, error) {
	switch kind {
	case "broker":
		store, err := dispatcher.NewRedisResultStore(cfg.RedisAddr, "")
		if err != nil {
			return nil, fmt.Errorf("redis result store: %w", err)
		}
		llm, err := soloProvider(cfg)
		if err != nil {
			return nil, err
		}
		broker := dispatcher.NewBroker(cfg.RedisAddr, "", workers, store, llm, logger).WithBatchSize(batchSize)
		if dedupe, err := dispatcher.NewChunkDedupe(cfg.RedisAddr, 24*time.Hour); err == nil {
			broker = broker.WithDedupe(dedupe)
		} else {
			logger.Warn().Err(err).Msg("dedupe store unavailable, submitting without dedupe")
		}
		return broker, nil
	case "kafka":
		if cfg.KafkaBrokers == "" {
			return nil, fmt.Errorf("kafka dispatcher requires kafka_brokers to be configured")
		}
		return newKafkaDispatcher(cfg, workers, batchSize, logger)
	default:
		return dispatcher.NewLocal(workers, dispatcher.NewMemoryResultStore(), logger).WithBatchSize(batchSize), nil
	}
}

// buildTokenizer selects the token-counting rule shared by the chunker,
// merger, and allocator for this run, per cfg.TokenizerKind.
func buildTokenizer(kind string) (tokenizer.Tokenizer, error) {
	switch kind {
	case "", "whitespace":
		return tokenizer.Whitespace{}, nil
	case "tiktoken":
		return tokenizer.NewTiktoken("cl100k_base")
	default:
		return nil, fmt.Errorf("unknown tokenizer kind %q", kind)
	}
}

func soloProvider(cfg config.Config) (llmprovider.Provider, error) {
	llmReg, _, err := buildProviderRegistries(cfg)
	if err != nil {
		return nil, err
	}
	return llmReg.Get(pipeline.ProviderKind(cfg.LLMProvider))
}
