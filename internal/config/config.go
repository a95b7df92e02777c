// Package config loads run configuration by layering environment
// variables over config.yaml, grounded on
// internal/config/loader.go's env-over-yaml loading pattern, generalized
// to this pipeline's much smaller surface: provider selection,
// broker/vector-store addresses, and logging.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting sourced from config.yaml/.env/environment.
// None of its fields is set from a CLI flag.
type Config struct {
	LLMProvider      string `yaml:"llm_provider"`
	EmbeddingProvider string `yaml:"embedding_provider"`

	GeminiAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`

	RedisAddr   string `yaml:"redis_addr"`
	QdrantDSN   string `yaml:"qdrant_dsn"`
	KafkaBrokers string `yaml:"kafka_brokers"`

	PostgresDSN string `yaml:"postgres_dsn"`

	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	// QACountBase is the per-dataset "b" tunable the QACountPolicy piecewise
	// rule is parameterized on (see internal/pipeline/allocator); it is a
	// dataset config value, distinct from the CLI's -batch-size flag, which
	// controls how many chunks the dispatcher groups into one LLM call.
	QACountBase int `yaml:"qa_count_base"`

	// TokenizerKind selects the Tokenizer shared by chunker/merger/allocator:
	// "whitespace" (default, no network/model dependency) or "tiktoken"
	// (BPE counts matching an OpenAI-style model's own token accounting).
	TokenizerKind string `yaml:"tokenizer"`
}

func defaults() Config {
	return Config{
		LLMProvider:       "gemini",
		EmbeddingProvider: "gemini",
		RedisAddr:         "localhost:6379",
		QdrantDSN:         "http://localhost:6334",
		LogLevel:          "info",
		QACountBase:       2,
		TokenizerKind:     "whitespace",
	}
}

// Load reads config.yaml (if present) at path, then overlays .env (if
// present) and process environment variables on top, so an environment
// value wins over the same setting in config.yaml.
func Load(yamlPath string) (Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if b, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	// .env is loaded best-effort; its absence is not an error.
	_ = godotenv.Load()

	overlayString(&cfg.LLMProvider, "LLM_PROVIDER")
	overlayString(&cfg.EmbeddingProvider, "EMBEDDING_PROVIDER")
	overlayString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	overlayString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	overlayString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	overlayString(&cfg.RedisAddr, "REDIS_ADDR")
	overlayString(&cfg.QdrantDSN, "QDRANT_DSN")
	overlayString(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	overlayString(&cfg.PostgresDSN, "POSTGRES_DSN")
	overlayString(&cfg.LogLevel, "LOG_LEVEL")
	overlayString(&cfg.LogPath, "LOG_PATH")
	overlayString(&cfg.TokenizerKind, "TOKENIZER")
	overlayInt(&cfg.QACountBase, "QA_COUNT_BASE")

	return cfg, nil
}

func overlayString(field *string, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		*field = v
	}
}

func overlayInt(field *int, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*field = n
		}
	}
}
