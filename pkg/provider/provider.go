package provider

import (
	"context"
	"strings"

	"llamachat/pkg/types"
)

// CompletionModel is a backend that continues a fully rendered prompt.
// It knows nothing about chat formats: the prompt already contains every
// special token the model expects.
type CompletionModel interface {
	// Name returns the provider name (e.g., "openai", "gemini").
	Name() string

	// Complete generates the continuation of prompt for the given model.
	Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error)
}

// StreamChunk represents a piece of a streamed completion.
type StreamChunk struct {
	Text         string
	FinishReason types.FinishReason
	Usage        *types.Usage // Usually only available in the last chunk
	Error        error        // To handle stream errors gracefully
}

// StreamingModel is implemented by backends that can stream their output.
type StreamingModel interface {
	CompletionModel

	// Stream sends the prompt and returns a channel of chunks. The channel is
	// closed once generation finished or failed.
	Stream(ctx context.Context, model, prompt string, params types.CompletionParams) (<-chan StreamChunk, error)
}

// CompleteFunc adapts a plain function into a CompletionModel.
type CompleteFunc func(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error)

func (f CompleteFunc) Name() string { return "func" }

func (f CompleteFunc) Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error) {
	return f(ctx, model, prompt, params)
}

// Collect drains a stream into a single completion.
func Collect(chunks <-chan StreamChunk) (*types.Completion, error) {
	return collect(chunks, nil)
}

func collect(chunks <-chan StreamChunk, onDelta func(string)) (*types.Completion, error) {
	out := &types.Completion{FinishReason: types.FinishReasonStop}
	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			// Unblock the producer.
			go func() {
				for range chunks {
				}
			}()
			return nil, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if onDelta != nil {
				onDelta(chunk.Text)
			}
		}
		if chunk.FinishReason != "" {
			out.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			out.Usage = *chunk.Usage
		}
	}
	out.Text = text.String()
	return out, nil
}

// WithDeltas returns a CompletionModel that completes through m.Stream and
// hands every text chunk to onDelta as it arrives.
func WithDeltas(m StreamingModel, onDelta func(string)) CompletionModel {
	return &deltaModel{StreamingModel: m, onDelta: onDelta}
}

type deltaModel struct {
	StreamingModel
	onDelta func(string)
}

func (m *deltaModel) Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error) {
	chunks, err := m.Stream(ctx, model, prompt, params)
	if err != nil {
		return nil, err
	}
	return collect(chunks, m.onDelta)
}

var _ CompletionModel = CompleteFunc(nil)
