package llama3

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"llamachat/pkg/types"
)

// wireMessage is the interop shape of every message. Content and ToolCalls
// are both always present; the unused one is null.
type wireMessage struct {
	Role      Role           `json:"role"`
	Content   *string        `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
	Success   *bool          `json:"success,omitempty"`
}

type wireToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// UnmarshalJSON accepts {"name", "arguments"} as well as the OpenAI shape
// {"type": "function", "function": {"name", "arguments" | "parameters"}} where
// the arguments may be a JSON encoded string.
func (c *wireToolCall) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name       string          `json:"name"`
		Arguments  json.RawMessage `json:"arguments"`
		Parameters json.RawMessage `json:"parameters"`
		Function   *struct {
			Name       string          `json:"name"`
			Arguments  json.RawMessage `json:"arguments"`
			Parameters json.RawMessage `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	name, args, params := raw.Name, raw.Arguments, raw.Parameters
	if raw.Function != nil {
		name, args, params = raw.Function.Name, raw.Function.Arguments, raw.Function.Parameters
	}
	if name == "" {
		return errors.New("tool call without a name")
	}
	if len(args) == 0 {
		args = params
	}

	decoded, err := decodeArguments(args)
	if err != nil {
		return fmt.Errorf("tool call %s: %w", name, err)
	}
	c.Name, c.Arguments = name, decoded
	return nil
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		raw = []byte(s)
	}
	out, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return out, nil
}

func toWire(m Message) wireMessage {
	w := wireMessage{Role: m.Role()}
	switch m := m.(type) {
	case SystemMessage:
		w.Content = &m.Content
	case UserMessage:
		w.Content = &m.Content
	case AssistantReply:
		w.Content = &m.Content
	case ToolRequest:
		w.ToolCalls = make([]wireToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			w.ToolCalls[i] = wireToolCall{Name: c.Name, Arguments: c.Parameters()}
		}
	case ToolResponseMessage:
		w.Content = &m.Content
		w.Success = &m.Success
	}
	return w
}

func fromWire(w wireMessage) (Message, error) {
	if _, err := ParseRole(string(w.Role)); err != nil {
		return nil, err
	}
	if w.Content != nil && len(w.ToolCalls) > 0 {
		return nil, fmt.Errorf("%s message has both content and tool_calls", w.Role)
	}
	if w.Role != RoleAssistant && len(w.ToolCalls) > 0 {
		return nil, fmt.Errorf("%s message cannot carry tool_calls", w.Role)
	}

	var content string
	if w.Content != nil {
		content = *w.Content
	}

	switch w.Role {
	case RoleSystem:
		return SystemMessage{Content: content}, nil
	case RoleUser:
		return UserMessage{Content: content}, nil
	case RoleIPython:
		success := w.Success == nil || *w.Success
		return ToolResponseMessage{Content: content, Success: success}, nil
	default:
		if len(w.ToolCalls) == 0 {
			return AssistantReply{Content: content}, nil
		}
		calls := make([]ToolCall, len(w.ToolCalls))
		for i, c := range w.ToolCalls {
			calls[i] = NewToolCall(c.Name, c.Arguments)
		}
		return ToolRequest{ToolCalls: calls}, nil
	}
}

// MarshalMessage encodes m in its interop form.
func MarshalMessage(m Message) ([]byte, error) {
	return json.Marshal(toWire(m))
}

// UnmarshalMessage decodes a message in its interop form.
func UnmarshalMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

type wireRequest struct {
	Model    string            `json:"model"`
	Messages []wireMessage     `json:"messages"`
	Tools    []json.RawMessage `json:"tools,omitempty"`
	Params   types.ChatParams  `json:"params"`
}

// MarshalJSON encodes the request so it can be forwarded to another process.
// Built-in tools encode as their name, other tools as JSON schema objects.
func (r *ChatRequest) MarshalJSON() ([]byte, error) {
	w := wireRequest{
		Model:    r.Model,
		Messages: make([]wireMessage, len(r.messages)),
		Params:   r.Params,
	}
	for i, m := range r.messages {
		w.Messages[i] = toWire(m)
	}
	for _, def := range r.tools {
		raw, err := marshalDefinition(def)
		if err != nil {
			return nil, err
		}
		w.Tools = append(w.Tools, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates a request. Tool calls naming a
// built-in tool are typed.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	tools := make([]ToolDefinition, 0, len(w.Tools))
	for _, raw := range w.Tools {
		def, err := unmarshalDefinition(raw)
		if err != nil {
			return err
		}
		tools = append(tools, def)
	}

	msgs := make([]Message, len(w.Messages))
	for i, wm := range w.Messages {
		m, err := fromWire(wm)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if req, ok := m.(ToolRequest); ok {
			for j := range req.ToolCalls {
				if err := req.ToolCalls[j].TryParse(tools); err != nil {
					return fmt.Errorf("message %d: %w", i, err)
				}
			}
		}
		msgs[i] = m
	}

	req, err := NewChatRequest(w.Model, msgs, tools, w.Params)
	if err != nil {
		return err
	}
	*r = *req
	return nil
}

func marshalDefinition(def ToolDefinition) (json.RawMessage, error) {
	switch d := def.(type) {
	case BuiltInTool:
		return json.Marshal(string(d))
	case *TypedTool:
		return json.Marshal(d.JSONSchema())
	case JSONSchema:
		return json.Marshal(d)
	default:
		return nil, fmt.Errorf("unsupported tool definition %T", def)
	}
}

func unmarshalDefinition(raw json.RawMessage) (ToolDefinition, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		b, ok := ParseBuiltInTool(name)
		if !ok {
			return nil, fmt.Errorf("unknown built-in tool %q", name)
		}
		return b, nil
	}

	var s JSONSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid tool definition: %w", err)
	}
	if s.Function.Name == "" {
		return nil, errors.New("tool definition without a function name")
	}
	if s.Type == "" {
		s.Type = "function"
	}
	return s, nil
}

type wireResponse struct {
	Message      wireMessage        `json:"message"`
	FinishReason types.FinishReason `json:"finish_reason"`
	Usage        types.Usage        `json:"usage"`
}

func (r ChatResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResponse{
		Message:      toWire(r.Message),
		FinishReason: r.FinishReason,
		Usage:        r.Usage,
	})
}

func (r *ChatResponse) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m, err := fromWire(w.Message)
	if err != nil {
		return err
	}
	if m.Role() != RoleAssistant {
		return fmt.Errorf("response message must be an assistant message, got %s", m.Role())
	}
	*r = ChatResponse{Message: m, FinishReason: w.FinishReason, Usage: w.Usage}
	return nil
}
