package llama3

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"llamachat/pkg/prompt"
	"llamachat/pkg/types"
)

// Errors returned by ValidateMessages.
var (
	ErrNoMessages   = errors.New("messages cannot be empty")
	ErrFirstMessage = errors.New("first message must be a system or user message")
	ErrAlternation  = errors.New("user and ipython messages must alternate with assistant messages")
	ErrLastMessage  = errors.New("last message must be a user or ipython message")
)

// ValidateMessages checks that msgs form a legal Llama 3 conversation: it
// starts with a system or user message, and after an optional leading system
// message user or ipython turns alternate with assistant turns, ending on a
// user or ipython turn.
func ValidateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return ErrNoMessages
	}

	first := msgs[0].Role()
	if first != RoleSystem && first != RoleUser {
		return fmt.Errorf("%w: got %s", ErrFirstMessage, first)
	}

	cursor := 0
	if first == RoleSystem {
		cursor = 1
	}

	for i, m := range msgs[cursor:] {
		role := m.Role()
		if i%2 == 0 && role != RoleUser && role != RoleIPython {
			return fmt.Errorf("%w: message %d is %s, want user or ipython", ErrAlternation, cursor+i, role)
		}
		if i%2 == 1 && role != RoleAssistant {
			return fmt.Errorf("%w: message %d is %s, want assistant", ErrAlternation, cursor+i, role)
		}
	}

	if last := msgs[len(msgs)-1].Role(); last != RoleUser && last != RoleIPython {
		return fmt.Errorf("%w: got %s", ErrLastMessage, last)
	}
	return nil
}

// ChatRequest is the state of a conversation: the model, the messages so
// far, the tools available to the model and the sampling parameters.
//
// A ChatRequest must be created with NewChatRequest. It is not safe for
// concurrent use.
type ChatRequest struct {
	Model  string
	Params types.ChatParams

	messages []Message
	tools    []ToolDefinition
}

// NewChatRequest validates messages and returns a request owning copies of
// messages and tools.
func NewChatRequest(model string, messages []Message, tools []ToolDefinition, params types.ChatParams) (*ChatRequest, error) {
	if err := ValidateMessages(messages); err != nil {
		return nil, err
	}
	return &ChatRequest{
		Model:    model,
		Params:   params,
		messages: slices.Clone(messages),
		tools:    slices.Clone(tools),
	}, nil
}

// Extend appends msgs after validating the resulting conversation. On error
// the request is unchanged.
func (r *ChatRequest) Extend(msgs ...Message) error {
	candidate := append(slices.Clone(r.messages), msgs...)
	if err := ValidateMessages(candidate); err != nil {
		return err
	}
	r.messages = candidate
	return nil
}

// Clone returns an independent copy of the request.
func (r *ChatRequest) Clone() *ChatRequest {
	return &ChatRequest{
		Model:    r.Model,
		Params:   r.Params,
		messages: slices.Clone(r.messages),
		tools:    slices.Clone(r.tools),
	}
}

// appendReply adds the model's reply without validation; a conversation
// ending on an assistant turn is legal, it just cannot be rendered.
func (r *ChatRequest) appendReply(m Message) {
	r.messages = append(r.messages, m)
}

// Messages returns a copy of the conversation.
func (r *ChatRequest) Messages() []Message {
	return slices.Clone(r.messages)
}

// Tools returns a copy of the declared tools.
func (r *ChatRequest) Tools() []ToolDefinition {
	return slices.Clone(r.tools)
}

// Last returns the most recent message.
func (r *ChatRequest) Last() Message {
	if len(r.messages) == 0 {
		return nil
	}
	return r.messages[len(r.messages)-1]
}

// System returns the system message that is rendered. Without tools it is the
// caller's system message, if any. With tools the ipython environment is
// activated, built-in tools other than the code interpreter are listed and
// the caller's system message follows.
func (r *ChatRequest) System() (SystemMessage, bool) {
	original, hasOriginal := r.originalSystem()
	if len(r.tools) == 0 {
		return original, hasOriginal
	}

	var sb strings.Builder
	sb.WriteString("Environment: ipython")
	if builtIns := r.SystemPromptTools(); len(builtIns) > 0 {
		names := make([]string, len(builtIns))
		for i, b := range builtIns {
			names[i] = b.Name()
		}
		sb.WriteString("\nTools: ")
		sb.WriteString(strings.Join(names, ", "))
	}
	if hasOriginal {
		sb.WriteString("\n")
		sb.WriteString(original.Content)
	}
	return SystemMessage{Content: sb.String()}, true
}

// SystemPromptTools returns the built-in tools listed in the system prompt.
// The code interpreter is implied by the ipython environment.
func (r *ChatRequest) SystemPromptTools() []BuiltInTool {
	var out []BuiltInTool
	for _, def := range r.tools {
		if b, ok := def.(BuiltInTool); ok && IsBuiltIn(b) && b != CodeInterpreterTool {
			out = append(out, b)
		}
	}
	return out
}

// UserProvidedTools returns the tools that are declared in the first user
// message.
func (r *ChatRequest) UserProvidedTools() []ToolDefinition {
	var out []ToolDefinition
	for _, def := range r.tools {
		if !IsBuiltIn(def) {
			out = append(out, def)
		}
	}
	return out
}

var userPrompt = prompt.NewTemplate("Answer the user's question by making use of the following functions if needed.\n\n" +
	"{{tools}}\n" +
	"{{instructions}}\n\n" +
	"Question: {{question}}")

// User returns the first user message as it is rendered. With custom tools
// their definitions are injected ahead of the question. It reports false when
// the conversation opens with a tool result instead of a user message.
func (r *ChatRequest) User() (UserMessage, bool) {
	original, ok := r.firstUser()
	if !ok {
		return UserMessage{}, false
	}

	custom := r.UserProvidedTools()
	if len(custom) == 0 {
		return original, true
	}

	var defs strings.Builder
	for _, def := range custom {
		defs.WriteString(RenderDefinition(def))
		defs.WriteString("\n")
	}

	return UserMessage{Content: userPrompt.Render(map[string]any{
		"tools":        defs.String(),
		"instructions": callParser.FormatInstructions(),
		"question":     original.Content,
	})}, true
}

// Render returns the prompt for the next assistant turn. It assumes the
// messages are valid, which NewChatRequest and Extend guarantee.
func (r *ChatRequest) Render() string {
	var sb strings.Builder
	sb.WriteString(BeginOfText)
	if system, ok := r.System(); ok {
		sb.WriteString(system.Render())
	}
	if user, ok := r.User(); ok {
		sb.WriteString(user.Render())
	}
	for _, m := range r.rest() {
		sb.WriteString(m.Render())
	}
	sb.WriteString(RoleAssistant.Header())
	sb.WriteString("\n\n")
	return sb.String()
}

func (r *ChatRequest) originalSystem() (SystemMessage, bool) {
	if len(r.messages) == 0 {
		return SystemMessage{}, false
	}
	s, ok := r.messages[0].(SystemMessage)
	return s, ok
}

// conversation returns the messages after the caller's system message.
func (r *ChatRequest) conversation() []Message {
	if _, ok := r.originalSystem(); ok {
		return r.messages[1:]
	}
	return r.messages
}

func (r *ChatRequest) firstUser() (UserMessage, bool) {
	msgs := r.conversation()
	if len(msgs) == 0 {
		return UserMessage{}, false
	}
	u, ok := msgs[0].(UserMessage)
	return u, ok
}

// rest returns the messages rendered as they are: everything after the
// system and the first user message.
func (r *ChatRequest) rest() []Message {
	msgs := r.conversation()
	if _, ok := r.firstUser(); ok {
		return msgs[1:]
	}
	return msgs
}
