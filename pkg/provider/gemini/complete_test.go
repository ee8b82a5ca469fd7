package gemini

import (
	"context"
	"os"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamachat/pkg/types"
)

func TestNewCompletionModel_RequiresKey(t *testing.T) {
	_, err := NewCompletionModel(context.Background(), Config{})
	require.Error(t, err)
}

func TestToCompletion(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(`{"name": "get_weather", `), genai.Text(`"parameters": {}}`)},
			},
			FinishReason: genai.FinishReasonMaxTokens,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	}

	got := toCompletion(resp)
	assert.Equal(t, `{"name": "get_weather", "parameters": {}}`, got.Text)
	assert.Equal(t, types.FinishReasonLength, got.FinishReason)
	assert.Equal(t, types.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, got.Usage)
}

func TestToCompletion_NoCandidates(t *testing.T) {
	got := toCompletion(&genai.GenerateContentResponse{})
	assert.Empty(t, got.Text)
	assert.Equal(t, types.FinishReasonStop, got.FinishReason)
}

// --- Live Tests below ---

func TestLive_Complete(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping live test: GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	m, err := NewCompletionModel(ctx, Config{APIKey: apiKey, Model: os.Getenv("GEMINI_MODEL")})
	require.NoError(t, err)
	defer m.Close()

	res, err := m.Complete(ctx, "", "Reply with 'LIVE TEST OK'", types.CompletionParams{})
	require.NoError(t, err)
	t.Logf("Response: %s", res.Text)
}
