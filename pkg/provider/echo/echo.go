package echo

import (
	"context"
	"strings"
	"sync"

	"llamachat/pkg/provider"
	"llamachat/pkg/types"
)

// CompletionModel is a deterministic provider useful for tests and fallbacks.
// Scripted replies are returned in order; once they run out it echoes the
// content of the last turn in the prompt.
type CompletionModel struct {
	Prefix string

	mu      sync.Mutex
	replies []string
	prompts []string
}

// New returns a new echo provider.
func New(prefix string, replies ...string) *CompletionModel {
	return &CompletionModel{Prefix: prefix, replies: replies}
}

func (p *CompletionModel) Name() string {
	if p.Prefix == "" {
		return "echo"
	}
	return "echo-" + strings.ReplaceAll(p.Prefix, " ", "_")
}

// Script appends replies to be returned by subsequent completions.
func (p *CompletionModel) Script(replies ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replies...)
}

// Prompts returns every prompt received so far.
func (p *CompletionModel) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.prompts))
	copy(out, p.prompts)
	return out
}

// Complete implements provider.CompletionModel
func (p *CompletionModel) Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	var text string
	if len(p.replies) > 0 {
		text = p.replies[0]
		p.replies = p.replies[1:]
	} else {
		text = p.echo(prompt)
	}
	p.mu.Unlock()

	return &types.Completion{
		Text:         text,
		FinishReason: types.FinishReasonStop,
		Usage: types.Usage{
			PromptTokens:     len(prompt),
			CompletionTokens: len(text),
			TotalTokens:      len(prompt) + len(text),
		},
	}, nil
}

// Stream implements provider.StreamingModel
func (p *CompletionModel) Stream(ctx context.Context, model, prompt string, params types.CompletionParams) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk)

	go func() {
		defer close(ch)

		// Just generate the full response and send it in chunks (simulated)
		resp, err := p.Complete(ctx, model, prompt, params)
		if err != nil {
			ch <- provider.StreamChunk{Error: err}
			return
		}

		// Simulate streaming by words
		words := strings.SplitAfter(resp.Text, " ")
		for _, word := range words {
			ch <- provider.StreamChunk{Text: word}
		}

		ch <- provider.StreamChunk{
			FinishReason: resp.FinishReason,
			Usage:        &resp.Usage,
		}
	}()

	return ch, nil
}

// echo extracts the body of the last complete turn of a Llama 3 prompt.
func (p *CompletionModel) echo(prompt string) string {
	const eot = "<|eot_id|>"
	const headerEnd = "<|end_header_id|>\n\n"

	body := prompt
	if i := strings.LastIndex(prompt, eot); i >= 0 {
		body = prompt[:i]
	}
	if i := strings.LastIndex(body, headerEnd); i >= 0 {
		body = body[i+len(headerEnd):]
	}

	var sb strings.Builder
	if p.Prefix != "" {
		sb.WriteString(strings.TrimSpace(p.Prefix))
		sb.WriteString(" ")
	}
	sb.WriteString(body)
	sb.WriteString(eot)
	return sb.String()
}

var _ provider.StreamingModel = (*CompletionModel)(nil)
