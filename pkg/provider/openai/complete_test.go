package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamachat/pkg/types"
)

func TestNewCompletionModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "Empty API Key",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "Valid Config",
			cfg:     Config{APIKey: "test-key"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCompletionModel(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCompletionModel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got == nil {
				t.Error("NewCompletionModel() returned nil success")
			}
		})
	}
}

func TestComplete_SendsRawPrompt(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "text_completion",
			"model": "llama-3.1-8b-instruct",
			"choices": [{"text": "Hello!<|eot_id|>", "index": 0, "finish_reason": "length"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	m, err := NewCompletionModel(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	prompt := "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\nhi<|eot_id|>"
	res, err := m.Complete(context.Background(), "llama-3.1-8b-instruct", prompt, types.CompletionParams{
		MaxTokens: types.Ptr(64),
		Stop:      []string{"<|eot_id|>"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello!<|eot_id|>", res.Text)
	assert.Equal(t, types.FinishReasonLength, res.FinishReason)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	assert.Equal(t, prompt, got["prompt"])
	assert.Equal(t, "llama-3.1-8b-instruct", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
}

func TestComplete_BackendErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	m, err := NewCompletionModel(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), "", "prompt", types.CompletionParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

// --- Live Tests below ---

func TestLive_Complete(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping live test: OPENAI_API_KEY not set")
	}

	m, err := NewCompletionModel(Config{
		APIKey:  apiKey,
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	})
	require.NoError(t, err)

	prompt := "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\nReply with 'LIVE TEST OK'<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"
	res, err := m.Complete(context.Background(), "", prompt, types.CompletionParamsFor(types.ChatParams{MaxTokens: types.Ptr(16)}))
	require.NoError(t, err)

	t.Logf("Response: %s", res.Text)
	if res.Text == "" {
		t.Error("Received empty completion")
	}
}
