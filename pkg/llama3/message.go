package llama3

import (
	"errors"
	"strings"
)

// Message is one turn of a conversation. The set of implementations is
// closed; the role of every variant is fixed by its type.
type Message interface {
	Role() Role
	// Render returns the turn in prompt form, header and terminator included.
	Render() string

	isMessage()
}

type SystemMessage struct {
	Content string
}

type UserMessage struct {
	Content string
}

// AssistantReply is an assistant turn carrying plain text.
type AssistantReply struct {
	Content string
}

// ToolRequest is an assistant turn that calls one or more tools. It never
// carries content.
type ToolRequest struct {
	ToolCalls []ToolCall
}

// ToolResponseMessage carries the result of a tool call back to the model.
type ToolResponseMessage struct {
	Content string
	Success bool
}

// ErrEmptyToolRequest is returned by NewToolRequest without calls.
var ErrEmptyToolRequest = errors.New("tool request needs at least one tool call")

func NewToolRequest(calls ...ToolCall) (ToolRequest, error) {
	if len(calls) == 0 {
		return ToolRequest{}, ErrEmptyToolRequest
	}
	return ToolRequest{ToolCalls: calls}, nil
}

// ToolSuccess wraps the output of a tool that ran successfully.
func ToolSuccess(content string) ToolResponseMessage {
	return ToolResponseMessage{Content: content, Success: true}
}

// ToolFailure wraps the error of a tool that failed.
func ToolFailure(content string) ToolResponseMessage {
	return ToolResponseMessage{Content: content}
}

func (SystemMessage) Role() Role       { return RoleSystem }
func (UserMessage) Role() Role         { return RoleUser }
func (AssistantReply) Role() Role      { return RoleAssistant }
func (ToolRequest) Role() Role         { return RoleAssistant }
func (ToolResponseMessage) Role() Role { return RoleIPython }

func (m SystemMessage) Render() string  { return renderTurn(RoleSystem, m.Content, EndOfTurn) }
func (m UserMessage) Render() string    { return renderTurn(RoleUser, m.Content, EndOfTurn) }
func (m AssistantReply) Render() string { return renderTurn(RoleAssistant, m.Content, EndOfTurn) }

// Render ends the turn with <|eom_id|>: with the ipython environment active the
// model expects a tool result next, not the end of the turn.
func (m ToolRequest) Render() string {
	calls := make([]string, len(m.ToolCalls))
	for i, c := range m.ToolCalls {
		calls[i] = c.Render()
	}
	return renderTurn(RoleAssistant, strings.Join(calls, "\n"), EndOfMessage)
}

func (m ToolResponseMessage) Render() string {
	var body string
	if m.Success {
		body = "completed[stdout]" + m.Content + "[/stdout]"
	} else {
		body = "failed[stderr]" + m.Content + "[/stderr]"
	}
	return renderTurn(RoleIPython, body, EndOfTurn)
}

func (SystemMessage) isMessage()       {}
func (UserMessage) isMessage()         {}
func (AssistantReply) isMessage()      {}
func (ToolRequest) isMessage()         {}
func (ToolResponseMessage) isMessage() {}

func renderTurn(role Role, body, terminator string) string {
	return role.Header() + "\n\n" + body + terminator
}
