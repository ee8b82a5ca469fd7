package llama3

import (
	"context"
	"fmt"

	"llamachat/pkg/provider"
	"llamachat/pkg/types"
)

// ChatResponse is the outcome of one model turn.
type ChatResponse struct {
	// Message is an AssistantReply or a ToolRequest.
	Message      Message
	FinishReason types.FinishReason
	Usage        types.Usage
}

// Chat renders req, asks backend for a completion and parses it into the
// next assistant message, which is appended to req.
//
// Backend errors are returned wrapped. A tool call whose arguments do not fit
// the declared schema is returned as a *ToolCallError; req is then unchanged.
func Chat(ctx context.Context, backend provider.CompletionModel, req *ChatRequest) (*ChatResponse, error) {
	completion, err := backend.Complete(ctx, req.Model, req.Render(), types.CompletionParamsFor(req.Params))
	if err != nil {
		return nil, fmt.Errorf("completion via %s: %w", backend.Name(), err)
	}

	msg, err := MessageFromRaw(completion.Text, req.tools)
	if err != nil {
		return nil, err
	}
	req.appendReply(msg)

	return &ChatResponse{
		Message:      msg,
		FinishReason: completion.FinishReason,
		Usage:        completion.Usage,
	}, nil
}

// MessageFromRaw parses a raw continuation into an AssistantReply or, when
// it contains a tool call, a ToolRequest typed against defs.
func MessageFromRaw(raw string, defs []ToolDefinition) (Message, error) {
	resp := ParseResponse(raw)
	call, ok := ParseToolCall(resp)
	if !ok {
		return AssistantReply{Content: resp.Text}, nil
	}
	if err := call.TryParse(defs); err != nil {
		return nil, err
	}
	return ToolRequest{ToolCalls: []ToolCall{call}}, nil
}
