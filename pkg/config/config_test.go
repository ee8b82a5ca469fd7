package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envBackend, envModel, envLogLevel,
		envOpenAIKey, envOpenAIBaseURL, envOpenAIModel,
		envOpenRouterKey, envOpenRouterBaseURL, envOpenRouterModel, envOpenRouterReferer, envOpenRouterAppName,
		envGeminiKey,
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llamachat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendEcho, cfg.ResolveBackend())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
backend: openai
model: llama-3.3-70b-instruct
system: You are terse.
params:
  max_tokens: 256
  temperature: 0.2
openai:
  api_key: sk-test
  base_url: http://localhost:8000/v1
agent:
  max_turns: 3
  tool_timeout: 5s
log:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendOpenAI, cfg.ResolveBackend())
	assert.Equal(t, "llama-3.3-70b-instruct", cfg.Model)
	assert.Equal(t, "You are terse.", cfg.System)
	require.NotNil(t, cfg.Params.MaxTokens)
	assert.Equal(t, 256, *cfg.Params.MaxTokens)
	require.NotNil(t, cfg.Params.Temperature)
	assert.InDelta(t, 0.2, *cfg.Params.Temperature, 1e-9)
	assert.Nil(t, cfg.Params.TopP)
	assert.Equal(t, "http://localhost:8000/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 3, cfg.Agent.MaxTurns)
	assert.Equal(t, 5*time.Second, cfg.Agent.ToolTimeout)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Agent.MaxConcurrency)
	assert.Equal(t, uint64(2), cfg.Retry.MaxRetries)

	log, err := cfg.Log.Logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "model: from-file\nopenai:\n  api_key: file-key\n")
	t.Setenv(envModel, "from-env")
	t.Setenv(envOpenRouterKey, "or-key")
	t.Setenv(envOpenRouterAppName, "llamachat")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
	assert.Equal(t, "file-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "llamachat", cfg.OpenRouter.AppName)
	assert.Equal(t, BackendOpenRouter, cfg.ResolveBackend())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "backend: [openai\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   int
	}{
		{name: "Defaults", mutate: func(*Config) {}},
		{name: "Unknown Backend", mutate: func(c *Config) { c.Backend = "llamafile" }, errs: 1},
		{name: "Missing Key", mutate: func(c *Config) { c.Backend = BackendGemini }, errs: 1},
		{name: "Bad Log Level", mutate: func(c *Config) { c.Log.Level = "loud" }, errs: 1},
		{
			name: "Everything Wrong",
			mutate: func(c *Config) {
				c.Backend = BackendOpenAI
				c.Agent.MaxTurns = -1
				c.Agent.MaxConcurrency = -1
				c.Agent.ToolTimeout = -time.Second
				c.Retry.InitialBackoff = time.Minute
			},
			errs: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.Len(t, multierr.Errors(err), tt.errs)
		})
	}
}

func TestResolveBackend_Order(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "g"
	assert.Equal(t, BackendGemini, cfg.ResolveBackend())
	cfg.OpenAI.APIKey = "o"
	assert.Equal(t, BackendOpenAI, cfg.ResolveBackend())
	cfg.OpenRouter.APIKey = "r"
	assert.Equal(t, BackendOpenRouter, cfg.ResolveBackend())
	cfg.Backend = BackendEcho
	assert.Equal(t, BackendEcho, cfg.ResolveBackend())
}
