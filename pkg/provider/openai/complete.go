package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"llamachat/pkg/provider"
	"llamachat/pkg/types"
)

// Config contains OpenAI credential and runtime options.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPClient  *http.Client
	Temperature float64 // Default temperature
	Name        string  // Provider name reported by Name(), defaults to "openai"
}

// CompletionModel implements provider.CompletionModel on top of the legacy
// /completions endpoint. Servers hosting Llama 3 behind an OpenAI compatible
// API (vLLM, TGI, llama.cpp server) accept the rendered prompt verbatim there.
type CompletionModel struct {
	client             *goopenai.Client
	name               string
	defaultModel       string
	defaultTemperature float64
}

const (
	defaultTemperature = 0.7
	defaultModel       = "meta-llama/Llama-3.3-70B-Instruct"
)

// NewCompletionModel builds a completion provider.
func NewCompletionModel(cfg Config) (*CompletionModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}

	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModel
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}

	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &CompletionModel{
		client:             goopenai.NewClientWithConfig(apiCfg),
		name:               name,
		defaultModel:       modelName,
		defaultTemperature: temp,
	}, nil
}

func (m *CompletionModel) Name() string {
	return m.name
}

func (m *CompletionModel) prepareRequest(model, prompt string, params types.CompletionParams) goopenai.CompletionRequest {
	if strings.TrimSpace(model) == "" {
		model = m.defaultModel
	}

	req := goopenai.CompletionRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: float32(m.defaultTemperature),
		Stop:        params.Stop,
		Echo:        params.Echo,
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.Temperature != nil {
		req.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = float32(*params.TopP)
	}
	if params.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*params.FrequencyPenalty)
	}
	if params.PresencePenalty != nil {
		req.PresencePenalty = float32(*params.PresencePenalty)
	}
	return req
}

// Complete implements provider.CompletionModel.
func (m *CompletionModel) Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error) {
	req := m.prepareRequest(model, prompt, params)

	resp, err := m.client.CreateCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices returned", m.name)
	}

	choice := resp.Choices[0]
	return &types.Completion{
		Text:         choice.Text,
		FinishReason: types.ParseFinishReason(choice.FinishReason),
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream implements provider.StreamingModel.
func (m *CompletionModel) Stream(ctx context.Context, model, prompt string, params types.CompletionParams) (<-chan provider.StreamChunk, error) {
	req := m.prepareRequest(model, prompt, params)
	req.Stream = true

	stream, err := m.client.CreateCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				ch <- provider.StreamChunk{Error: err}
				return
			}

			if len(resp.Choices) > 0 {
				choice := resp.Choices[0]
				chunk := provider.StreamChunk{Text: choice.Text}
				if choice.FinishReason != "" {
					chunk.FinishReason = types.ParseFinishReason(choice.FinishReason)
				}
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Ensure interface compliance
var _ provider.StreamingModel = (*CompletionModel)(nil)
