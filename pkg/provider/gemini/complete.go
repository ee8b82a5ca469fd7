package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"llamachat/pkg/provider"
	"llamachat/pkg/types"
)

// Config contains Gemini credential and runtime options.
type Config struct {
	APIKey      string
	Model       string // e.g., "gemini-1.5-flash"
	Temperature float64
}

// CompletionModel implements provider.CompletionModel using Google Gemini.
// The rendered prompt is sent as a single text part; Gemini does not know the
// Llama 3 special tokens, so its output never carries a python tag and tool
// calls only come back in the JSON form.
type CompletionModel struct {
	client             *genai.Client
	defaultModel       string
	defaultTemperature float64
}

const (
	defaultModel       = "gemini-1.5-flash"
	defaultTemperature = 0.5
)

// NewCompletionModel builds a Gemini completion provider.
func NewCompletionModel(ctx context.Context, cfg Config) (*CompletionModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}

	return &CompletionModel{
		client:             client,
		defaultModel:       modelName,
		defaultTemperature: temp,
	}, nil
}

func (m *CompletionModel) Name() string {
	return "gemini"
}

// Close releases the underlying client.
func (m *CompletionModel) Close() error {
	return m.client.Close()
}

// Complete implements provider.CompletionModel.
func (m *CompletionModel) Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error) {
	gm := m.configure(model, params)

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	return toCompletion(resp), nil
}

// Stream implements provider.StreamingModel.
func (m *CompletionModel) Stream(ctx context.Context, model, prompt string, params types.CompletionParams) (<-chan provider.StreamChunk, error) {
	gm := m.configure(model, params)

	iter := gm.GenerateContentStream(ctx, genai.Text(prompt))
	ch := make(chan provider.StreamChunk)

	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				ch <- provider.StreamChunk{Error: err}
				return
			}

			c := toCompletion(resp)
			chunk := provider.StreamChunk{Text: c.Text}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
				chunk.FinishReason = c.FinishReason
			}
			if resp.UsageMetadata != nil {
				chunk.Usage = &c.Usage
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// configure builds a GenerativeModel with the sampling parameters applied.
func (m *CompletionModel) configure(model string, params types.CompletionParams) *genai.GenerativeModel {
	if strings.TrimSpace(model) == "" {
		model = m.defaultModel
	}

	gm := m.client.GenerativeModel(model)
	gm.SetTemperature(float32(m.defaultTemperature))
	if params.Temperature != nil {
		gm.SetTemperature(float32(*params.Temperature))
	}
	if params.TopP != nil {
		gm.SetTopP(float32(*params.TopP))
	}
	if params.TopK != nil {
		gm.SetTopK(int32(*params.TopK))
	}
	if params.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		gm.StopSequences = params.Stop
	}
	return gm
}

// Helpers

func toCompletion(resp *genai.GenerateContentResponse) *types.Completion {
	out := &types.Completion{FinishReason: types.FinishReasonStop}
	if resp.UsageMetadata != nil {
		out.Usage = types.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out.Text = sb.String()
	out.FinishReason = toFinishReason(cand.FinishReason)
	return out
}

func toFinishReason(fr genai.FinishReason) types.FinishReason {
	switch fr {
	case genai.FinishReasonMaxTokens:
		return types.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return types.FinishReasonContentFilter
	default:
		return types.FinishReasonStop
	}
}

var _ provider.StreamingModel = (*CompletionModel)(nil)
