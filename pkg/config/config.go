// Package config loads llamachat settings from a YAML file and the
// environment. Every field has a default so the binary runs without any
// setup, falling back to the echo backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"llamachat/pkg/types"
)

// Backend names.
const (
	BackendOpenRouter = "openrouter"
	BackendOpenAI     = "openai"
	BackendGemini     = "gemini"
	BackendEcho       = "echo"
)

// Environment variables that override the file.
const (
	envBackend           = "LLAMACHAT_BACKEND"
	envModel             = "LLAMACHAT_MODEL"
	envLogLevel          = "LLAMACHAT_LOG_LEVEL"
	envOpenAIKey         = "OPENAI_API_KEY"
	envOpenAIBaseURL     = "OPENAI_BASE_URL"
	envOpenAIModel       = "OPENAI_MODEL"
	envOpenRouterKey     = "OPENROUTER_API_KEY"
	envOpenRouterBaseURL = "OPENROUTER_BASE_URL"
	envOpenRouterModel   = "OPENROUTER_MODEL"
	envOpenRouterReferer = "OPENROUTER_REFERER"
	envOpenRouterAppName = "OPENROUTER_APP_NAME"
	envGeminiKey         = "GEMINI_API_KEY"
)

// Config holds runtime configuration.
type Config struct {
	// Backend selects the completion backend. Empty picks the first one
	// with credentials, see ResolveBackend.
	Backend string `yaml:"backend"`
	// Model overrides the backend's default model.
	Model  string           `yaml:"model"`
	System string           `yaml:"system"`
	Params types.ChatParams `yaml:"params"`

	OpenAI     OpenAIConfig     `yaml:"openai"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Gemini     GeminiConfig     `yaml:"gemini"`

	Agent AgentConfig `yaml:"agent"`
	Retry RetryConfig `yaml:"retry"`
	Log   LogConfig   `yaml:"log"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Referer string `yaml:"referer"`
	AppName string `yaml:"app_name"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AgentConfig tunes the tool loop.
type AgentConfig struct {
	MaxTurns       int           `yaml:"max_turns"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	// Interpreter runs code_interpreter calls; empty disables the tool.
	Interpreter string `yaml:"interpreter"`
}

type RetryConfig struct {
	MaxRetries     uint64        `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxTurns:       8,
			MaxConcurrency: 5,
			ToolTimeout:    60 * time.Second,
			Interpreter:    "python3",
		},
		Retry: RetryConfig{
			MaxRetries:     2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields whose environment variable is set.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Backend, envBackend)
	set(&c.Model, envModel)
	set(&c.Log.Level, envLogLevel)

	set(&c.OpenAI.APIKey, envOpenAIKey)
	set(&c.OpenAI.BaseURL, envOpenAIBaseURL)
	set(&c.OpenAI.Model, envOpenAIModel)

	set(&c.OpenRouter.APIKey, envOpenRouterKey)
	set(&c.OpenRouter.BaseURL, envOpenRouterBaseURL)
	set(&c.OpenRouter.Model, envOpenRouterModel)
	set(&c.OpenRouter.Referer, envOpenRouterReferer)
	set(&c.OpenRouter.AppName, envOpenRouterAppName)

	set(&c.Gemini.APIKey, envGeminiKey)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	switch c.Backend {
	case "", BackendOpenRouter, BackendOpenAI, BackendGemini, BackendEcho:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Backend == BackendOpenRouter && c.OpenRouter.APIKey == "" {
		err = multierr.Append(err, errors.New("openrouter backend requires an API key"))
	}
	if c.Backend == BackendOpenAI && c.OpenAI.APIKey == "" {
		err = multierr.Append(err, errors.New("openai backend requires an API key"))
	}
	if c.Backend == BackendGemini && c.Gemini.APIKey == "" {
		err = multierr.Append(err, errors.New("gemini backend requires an API key"))
	}

	if c.Agent.MaxTurns < 0 {
		err = multierr.Append(err, errors.New("agent.max_turns must not be negative"))
	}
	if c.Agent.MaxConcurrency < 0 {
		err = multierr.Append(err, errors.New("agent.max_concurrency must not be negative"))
	}
	if c.Agent.ToolTimeout < 0 {
		err = multierr.Append(err, errors.New("agent.tool_timeout must not be negative"))
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.InitialBackoff > c.Retry.MaxBackoff {
		err = multierr.Append(err, errors.New("retry.initial_backoff exceeds retry.max_backoff"))
	}
	if _, lerr := zapcore.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	return err
}

// ResolveBackend returns the configured backend, or the first backend with
// credentials in the order openrouter, openai, gemini, then echo.
func (c *Config) ResolveBackend() string {
	switch {
	case c.Backend != "":
		return c.Backend
	case c.OpenRouter.APIKey != "":
		return BackendOpenRouter
	case c.OpenAI.APIKey != "":
		return BackendOpenAI
	case c.Gemini.APIKey != "":
		return BackendGemini
	default:
		return BackendEcho
	}
}

// Logger builds the zap logger described by the log section.
func (c LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
