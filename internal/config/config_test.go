package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFileOrEnv(t *testing.T) {
	os.Unsetenv("LLM_PROVIDER")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "gemini", cfg.LLMProvider)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.LLMProvider)
}

func TestLoad_YAMLOverridesDefaultButNotEnv(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("llm_provider: anthropic\nredis_addr: redis:6379\n"), 0o644))
	t.Setenv("LLM_PROVIDER", "openai")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.LLMProvider) // env wins over yaml
	require.Equal(t, "redis:6379", cfg.RedisAddr)
}
