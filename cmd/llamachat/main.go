package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"go.uber.org/zap"

	"llamachat/pkg/agent"
	"llamachat/pkg/config"
	"llamachat/pkg/memory"
	"llamachat/pkg/provider"
	"llamachat/pkg/provider/echo"
	"llamachat/pkg/provider/gemini"
	"llamachat/pkg/provider/openai"
	"llamachat/pkg/provider/openrouter"
	"llamachat/pkg/tool"
	"llamachat/pkg/tool/builtin"
)

func main() {
	const envVarPrefix = "LLAMACHAT"

	fs := flag.NewFlagSet("llamachat", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "path to a YAML config file")
		system     = fs.String("system", "", "system prompt, overrides the config file")
		stream     = fs.Bool("stream", false, "print the reply as it is generated")
		history    = fs.Bool("history", false, "print the whole conversation afterwards")
	)
	if err := ff.Parse(fs, slices.Clone(os.Args[1:]), ff.WithEnvVarPrefix(envVarPrefix)); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fs.Usage()
			return
		}
		fmt.Fprintf(os.Stderr, "parse flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *system != "" {
		cfg.System = *system
	}

	log, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, *stream, *history, strings.Join(fs.Args(), " ")); err != nil {
		log.Fatal("llamachat failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, stream, history bool, question string) error {
	if question == "" {
		question = "Hello, introduce yourself."
	}

	llm, closeFn, err := initBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	var backend provider.CompletionModel = llm
	if stream {
		backend = provider.WithDeltas(llm, func(delta string) {
			fmt.Print(delta)
		})
	}
	// A retried stream prints its partial output again.
	backend = provider.WithRetry(backend, provider.RetryConfig{
		MaxRetries:     cfg.Retry.MaxRetries,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		Logger:         log,
	})

	registry := tool.NewRegistry()
	if cfg.Agent.Interpreter != "" {
		builtin.RegisterInterpreter(registry, builtin.NewCodeInterpreter(cfg.Agent.Interpreter))
	}
	registry.RegisterInstance(builtin.NewReadFile())
	registry.RegisterInstance(builtin.NewFindFiles())
	log.Debug("Tools registered", zap.String("tools", tool.Format(registry.List())))

	ag, err := agent.New(agent.Config{
		Backend:  backend,
		Model:    cfg.Model,
		Params:   cfg.Params,
		System:   cfg.System,
		Registry: registry,
		Executor: tool.NewExecutor(tool.ExecutorConfig{
			MaxConcurrency: cfg.Agent.MaxConcurrency,
			DefaultTimeout: cfg.Agent.ToolTimeout,
			Logger:         log,
		}),
		Logger:   log,
		MaxTurns: cfg.Agent.MaxTurns,
	})
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	fmt.Printf("User: %s\n", question)
	if stream {
		fmt.Print("Assistant: ")
	}
	res, err := ag.Ask(ctx, "", question)
	if err != nil {
		return err
	}
	if stream {
		fmt.Println()
	} else {
		fmt.Printf("Assistant: %s\n", res.Reply)
	}
	log.Debug("Conversation finished",
		zap.String("session", res.SessionID),
		zap.Int("turns", res.Turns),
		zap.Int("total_tokens", res.Usage.TotalTokens))

	if history {
		msgs, err := ag.History(res.SessionID)
		if err != nil {
			return err
		}
		fmt.Println("\n--- Conversation History ---")
		fmt.Println(memory.FormatHistory(msgs))
	}
	return nil
}

// initBackend builds the configured completion backend. Without credentials
// it falls back to a local echo backend.
func initBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (provider.StreamingModel, func(), error) {
	noop := func() {}
	temperature := 0.7
	if cfg.Params.Temperature != nil {
		temperature = *cfg.Params.Temperature
	}

	switch cfg.ResolveBackend() {
	case config.BackendOpenRouter:
		llm, err := openrouter.NewCompletionModel(openrouter.Config{
			APIKey:      cfg.OpenRouter.APIKey,
			BaseURL:     cfg.OpenRouter.BaseURL,
			Model:       cfg.OpenRouter.Model,
			Referer:     cfg.OpenRouter.Referer,
			AppName:     cfg.OpenRouter.AppName,
			Temperature: temperature,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openrouter init: %w", err)
		}
		log.Info("Using OpenRouter backend")
		return llm, noop, nil
	case config.BackendOpenAI:
		llm, err := openai.NewCompletionModel(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: temperature,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai init: %w", err)
		}
		log.Info("Using OpenAI compatible backend")
		return llm, noop, nil
	case config.BackendGemini:
		llm, err := gemini.NewCompletionModel(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: temperature,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gemini init: %w", err)
		}
		log.Info("Using Gemini backend")
		return llm, func() {
			if err := llm.Close(); err != nil {
				log.Warn("Closing gemini client", zap.Error(err))
			}
		}, nil
	default:
		log.Info("No credentials configured, using echo backend")
		return echo.New("EchoAgent"), noop, nil
	}
}
